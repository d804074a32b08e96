package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"darts-lite/apps/server/internal/codec"
	"darts-lite/apps/server/internal/lobby"
	"darts-lite/darts"
)

const handleTimeout = 5 * time.Second

var ErrBadSubject = errors.New("bad subject")

// Executor runs a command against a board's session.
type Executor interface {
	Execute(ctx context.Context, boardID string, cmd lobby.Command) (darts.Update, error)
}

// ThrowMessage is what a dartboard publishes for each dart.
type ThrowMessage struct {
	Score      int    `json:"score"`
	Multiplier string `json:"multiplier"`
	// User is the player name the dartboard believes is throwing. The
	// session's own turn order decides who scores.
	User string `json:"user,omitempty"`
}

type reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
	Seq   int    `json:"seq,omitempty"`
}

// Bus ingests dartboard throws from NATS and publishes board events back.
//
//	<prefix>.board.<boardID>.throw   in, optionally request/reply
//	<prefix>.board.<boardID>.events  out, one codec.Frame per message
type Bus struct {
	nc     *nats.Conn
	prefix string
	exec   Executor
	logger *zap.Logger
	sub    *nats.Subscription
}

// Connect dials the broker with reconnects enabled.
func Connect(url, name string) (*nats.Conn, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	opts := []nats.Option{
		nats.Name(name),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
	}
	return nats.Connect(url, opts...)
}

func New(nc *nats.Conn, prefix string, exec Executor, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "darts"
	}
	return &Bus{nc: nc, prefix: prefix, exec: exec, logger: logger.Named("bus")}
}

// Start subscribes to the throw subjects of every board.
func (b *Bus) Start() error {
	sub, err := b.nc.Subscribe(ThrowSubject(b.prefix), b.handleThrow)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", ThrowSubject(b.prefix), err)
	}
	b.sub = sub
	b.logger.Info("listening for throws", zap.String("subject", sub.Subject))
	return nil
}

func (b *Bus) handleThrow(m *nats.Msg) {
	res := b.ingest(m.Subject, m.Data)
	if m.Reply == "" || b.nc == nil {
		return
	}
	data, _ := json.Marshal(res)
	if err := b.nc.Publish(m.Reply, data); err != nil {
		b.logger.Warn("reply failed", zap.String("subject", m.Subject), zap.Error(err))
	}
}

func (b *Bus) ingest(subject string, data []byte) reply {
	boardID, err := BoardFromSubject(b.prefix, subject)
	if err != nil {
		b.logger.Warn("throw on unexpected subject", zap.String("subject", subject))
		return reply{Error: err.Error(), Code: "bad_subject"}
	}
	cmd, err := DecodeThrow(data)
	if err != nil {
		b.logger.Warn("malformed throw", zap.String("board_id", boardID), zap.Error(err))
		return reply{Error: err.Error(), Code: lobby.Code(err)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	up, err := b.exec.Execute(ctx, boardID, cmd)
	if err != nil {
		b.logger.Info("throw rejected", zap.String("board_id", boardID), zap.Error(err))
		return reply{Error: err.Error(), Code: lobby.Code(err)}
	}
	res := reply{OK: true}
	if up.Throw != nil {
		res.Seq = up.Throw.Seq
	}
	return res
}

// Emit publishes a frame on the board's events subject. nats buffers
// publishes, so this does not wait on the network.
func (b *Bus) Emit(frame codec.Frame) {
	if b == nil || b.nc == nil {
		return
	}
	data, err := codec.EncodeFrame(frame)
	if err != nil {
		b.logger.Error("encode frame failed", zap.Error(err))
		return
	}
	if err := b.nc.Publish(EventsSubject(b.prefix, frame.BoardID), data); err != nil {
		b.logger.Warn("publish failed", zap.String("board_id", frame.BoardID), zap.Error(err))
	}
}

// Close unsubscribes and drains the connection.
func (b *Bus) Close() error {
	if b.sub != nil {
		if err := b.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			b.logger.Warn("unsubscribe failed", zap.Error(err))
		}
	}
	if b.nc == nil {
		return nil
	}
	return b.nc.Drain()
}

func ThrowSubject(prefix string) string { return prefix + ".board.*.throw" }

func EventsSubject(prefix, boardID string) string {
	return prefix + ".board." + boardID + ".events"
}

// BoardFromSubject extracts the board id from <prefix>.board.<id>.throw.
func BoardFromSubject(prefix, subject string) (string, error) {
	rest, ok := strings.CutPrefix(subject, prefix+".board.")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrBadSubject, subject)
	}
	boardID, ok := strings.CutSuffix(rest, ".throw")
	if !ok || boardID == "" || strings.Contains(boardID, ".") {
		return "", fmt.Errorf("%w: %q", ErrBadSubject, subject)
	}
	return boardID, nil
}

// DecodeThrow turns a dartboard message into a manual_score command.
func DecodeThrow(data []byte) (lobby.Command, error) {
	var msg ThrowMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return lobby.Command{}, fmt.Errorf("%w: %v", darts.ErrInvalidThrow, err)
	}
	return lobby.Command{
		Type:       "manual_score",
		Score:      msg.Score,
		Multiplier: msg.Multiplier,
	}, nil
}
