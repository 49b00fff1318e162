package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cbodonnell/cardstage/pkg/events"
	"github.com/cbodonnell/cardstage/pkg/game/types"
	"github.com/cbodonnell/cardstage/pkg/log"
	"github.com/cbodonnell/cardstage/pkg/messages"
	"github.com/cbodonnell/cardstage/pkg/repositories"
	"github.com/cbodonnell/cardstage/pkg/repositories/models"
	"github.com/klauspost/compress/zstd"
)

// ActionRecord is one applied action in the history of a match.
type ActionRecord struct {
	Actor  string          `json:"actor"`
	Type   string          `json:"type"`
	Action messages.Action `json:"action"`
}

// MatchResult is sent by a session once it is done.
type MatchResult struct {
	SessionID    string
	Result       types.Result
	Participants uint32
	Turns        uint32
	StartedAt    time.Time
	EndedAt      time.Time
	Actions      []ActionRecord
}

type SaveMatchWorker struct {
	repository      repositories.Repository
	publisher       events.Publisher
	matchResultChan <-chan MatchResult
	logger          *log.Logger
}

type NewSaveMatchWorkerOptions struct {
	Repository      repositories.Repository
	Publisher       events.Publisher
	MatchResultChan <-chan MatchResult
	Logger          *log.Logger
}

// NewSaveMatchWorker creates a new SaveMatchWorker.
// The worker stores the results sent by finished sessions and publishes a
// match finished event for each of them.
func NewSaveMatchWorker(opts NewSaveMatchWorkerOptions) *SaveMatchWorker {
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &SaveMatchWorker{
		repository:      opts.Repository,
		publisher:       publisher,
		matchResultChan: opts.MatchResultChan,
		logger:          logger,
	}
}

// Start saves results until ctx is done. Results already buffered when ctx
// is done are still saved before Start returns.
func (w *SaveMatchWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain(context.WithoutCancel(ctx))
			return
		case result, ok := <-w.matchResultChan:
			if !ok {
				return
			}
			if err := w.saveMatch(ctx, result); err != nil {
				w.logger.Error("Failed to save match %s: %v", result.SessionID, err)
			}
		}
	}
}

func (w *SaveMatchWorker) drain(ctx context.Context) {
	for {
		select {
		case result, ok := <-w.matchResultChan:
			if !ok {
				return
			}
			if err := w.saveMatch(ctx, result); err != nil {
				w.logger.Error("Failed to save match %s: %v", result.SessionID, err)
			}
		default:
			return
		}
	}
}

func (w *SaveMatchWorker) saveMatch(ctx context.Context, result MatchResult) error {
	match, err := MatchFromResult(result)
	if err != nil {
		return err
	}
	if err := w.repository.SaveMatch(ctx, match); err != nil {
		return fmt.Errorf("failed to store match: %v", err)
	}
	w.logger.Debug("Saved match %s: %s", match.SessionID, match.Result)

	event := events.Event{
		Type:      events.EventTypeMatchFinished,
		SessionID: match.SessionID,
		Time:      match.EndedAt,
		Data:      match,
	}
	if err := w.publisher.Publish(ctx, event); err != nil {
		return fmt.Errorf("failed to publish match finished event: %v", err)
	}
	return nil
}

// MatchFromResult builds the stored form of a result, compressing its action
// history.
func MatchFromResult(result MatchResult) (*models.Match, error) {
	actionLog, err := EncodeActionLog(result.Actions)
	if err != nil {
		return nil, err
	}
	match := &models.Match{
		SessionID:    result.SessionID,
		Result:       result.Result.String(),
		Participants: result.Participants,
		Turns:        result.Turns,
		StartedAt:    result.StartedAt,
		EndedAt:      result.EndedAt,
		ActionLog:    actionLog,
	}
	if result.Result.Kind == types.ResultVictory {
		winner := result.Result.Winner
		match.Winner = &winner
	}
	return match, nil
}

var (
	logEncoder, _ = zstd.NewWriter(nil)
	logDecoder, _ = zstd.NewReader(nil)
)

// EncodeActionLog returns the zstd compressed JSON form of records.
func EncodeActionLog(records []ActionRecord) ([]byte, error) {
	if records == nil {
		records = []ActionRecord{}
	}
	b, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal action log: %v", err)
	}
	return logEncoder.EncodeAll(b, nil), nil
}

// DecodeActionLog returns the JSON form of a compressed action log. Actions
// are kept as raw JSON since their concrete types are not recorded.
func DecodeActionLog(data []byte) ([]json.RawMessage, error) {
	b, err := logDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress action log: %v", err)
	}
	var records []json.RawMessage
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal action log: %v", err)
	}
	return records, nil
}
