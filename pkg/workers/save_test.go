package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	eventsmocks "github.com/cbodonnell/cardstage/mocks/github.com/cbodonnell/cardstage/pkg/events"
	repomocks "github.com/cbodonnell/cardstage/mocks/github.com/cbodonnell/cardstage/pkg/repositories"
	"github.com/cbodonnell/cardstage/pkg/events"
	"github.com/cbodonnell/cardstage/pkg/game/types"
	"github.com/cbodonnell/cardstage/pkg/log"
	"github.com/cbodonnell/cardstage/pkg/messages"
	"github.com/cbodonnell/cardstage/pkg/repositories/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testResult() MatchResult {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return MatchResult{
		SessionID:    "s1",
		Result:       types.Result{Kind: types.ResultVictory, Winner: 1},
		Participants: 2,
		Turns:        6,
		StartedAt:    started,
		EndedAt:      started.Add(time.Minute),
		Actions: []ActionRecord{
			{Actor: "user(0)", Type: "end_turn", Action: &messages.EndTurn{Participant: 0}},
		},
	}
}

func TestMatchFromResult(t *testing.T) {
	match, err := MatchFromResult(testResult())
	require.NoError(t, err)

	assert.Equal(t, "s1", match.SessionID)
	assert.Equal(t, "victory(1)", match.Result)
	require.NotNil(t, match.Winner)
	assert.Equal(t, uint32(1), *match.Winner)

	records, err := DecodeActionLog(match.ActionLog)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.JSONEq(t, `{"actor":"user(0)","type":"end_turn","action":{"participant":0}}`, string(records[0]))
}

func TestMatchFromResult_NoWinner(t *testing.T) {
	result := testResult()
	result.Result = types.Result{Kind: types.ResultOutOfTurns}
	result.Actions = nil

	match, err := MatchFromResult(result)
	require.NoError(t, err)
	assert.Nil(t, match.Winner)

	records, err := DecodeActionLog(match.ActionLog)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSaveMatchWorker_saveMatch(t *testing.T) {
	tests := []struct {
		name    string
		saveErr error
		pubErr  error
		publish bool
		wantErr bool
	}{
		{name: "saved and published", publish: true},
		{name: "repository failure skips publishing", saveErr: errors.New("disk full"), wantErr: true},
		{name: "publish failure", publish: true, pubErr: errors.New("broker down"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repomocks.NewRepository(t)
			publisher := eventsmocks.NewPublisher(t)

			repo.EXPECT().SaveMatch(mock.Anything, mock.MatchedBy(func(m *models.Match) bool {
				return m.SessionID == "s1" && m.Turns == 6
			})).Return(tt.saveErr)
			if tt.publish {
				publisher.EXPECT().Publish(mock.Anything, mock.MatchedBy(func(e events.Event) bool {
					return e.Type == events.EventTypeMatchFinished && e.SessionID == "s1"
				})).Return(tt.pubErr)
			}

			w := NewSaveMatchWorker(NewSaveMatchWorkerOptions{
				Repository: repo,
				Publisher:  publisher,
				Logger:     log.Discard(),
			})
			err := w.saveMatch(context.Background(), testResult())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSaveMatchWorker_Start(t *testing.T) {
	repo := repomocks.NewRepository(t)
	results := make(chan MatchResult, 1)
	saved := make(chan struct{})

	repo.EXPECT().SaveMatch(mock.Anything, mock.Anything).
		Run(func(ctx context.Context, match *models.Match) { close(saved) }).
		Return(nil)

	w := NewSaveMatchWorker(NewSaveMatchWorkerOptions{
		Repository:      repo,
		MatchResultChan: results,
		Logger:          log.Discard(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	results <- testResult()
	select {
	case <-saved:
	case <-time.After(time.Second):
		t.Fatal("match was not saved")
	}
	cancel()
	<-done
}

func TestSaveMatchWorker_StartSavesBufferedResultsOnStop(t *testing.T) {
	repo := repomocks.NewRepository(t)
	results := make(chan MatchResult, 2)

	repo.EXPECT().SaveMatch(mock.Anything, mock.Anything).Return(nil).Times(2)

	w := NewSaveMatchWorker(NewSaveMatchWorkerOptions{
		Repository:      repo,
		MatchResultChan: results,
		Logger:          log.Discard(),
	})
	results <- testResult()
	results <- testResult()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Start(ctx)

	assert.Empty(t, results)
}
