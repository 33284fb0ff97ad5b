package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/dictanote/internal/dictation"
	"github.com/MrWong99/dictanote/internal/observe"
	"github.com/MrWong99/dictanote/internal/speech"
	"github.com/MrWong99/dictanote/pkg/audio"
)

const (
	// maxFrame bounds one inbound WebSocket message. Audio chunks of a few
	// hundred milliseconds of 16 kHz PCM fit comfortably.
	maxFrame = 256 << 10

	// outBuffer is how many outbound messages may queue before new ones are
	// dropped.
	outBuffer = 256

	// frameBuffer is how many audio chunks may queue for the recognizer.
	frameBuffer = 64

	writeTimeout = 5 * time.Second

	// statusSessionEnded closes the socket when the session was closed from
	// the server side, e.g. because dictation moved to another note.
	statusSessionEnded websocket.StatusCode = 4000
)

// Inbound control messages. Audio arrives as binary frames in the format the
// client declared with its last "mic" message.
type controlMessage struct {
	Type       string `json:"type"`
	Mode       string `json:"mode,omitempty"`
	Position   int    `json:"position,omitempty"`
	Granted    bool   `json:"granted,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
}

type statusMessage struct {
	Type     string `json:"type"`
	Mode     string `json:"mode"`
	State    string `json:"state"`
	Attempts int    `json:"attempts"`
	Preview  string `json:"preview"`
}

type stateMessage struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

type sessionErrorMessage struct {
	Type string `json:"type"`
	Kind string `json:"kind"`
}

type restartingMessage struct {
	Type    string `json:"type"`
	Attempt int    `json:"attempt"`
	DelayMs int64  `json:"delayMs"`
}

type previewMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type contentMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Cursor  int    `json:"cursor"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type typeOnly struct {
	Type string `json:"type"`
}

// dictate upgrades to a WebSocket and runs one dictation session on the
// note. The socket closes when the client leaves or the session is closed
// server side.
func (s *Server) dictate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		observe.Logger(r.Context()).Warn("api: dictation websocket accept failed", "err", err)
		return
	}
	conn.SetReadLimit(maxFrame)

	ctx, cancel := context.WithCancel(observe.WithNoteID(r.Context(), id))
	defer cancel()
	log := observe.Logger(ctx)

	c := newWSClient()
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(ctx, conn)
	}()

	code, reason := websocket.StatusNormalClosure, ""
	defer func() {
		c.finish()
		<-writerDone
		_ = conn.Close(code, reason)
	}()

	sess, err := s.dictation.Open(ctx, id, c)
	if err != nil {
		status, msg := classify(err)
		if status >= http.StatusInternalServerError {
			log.Error("api: open dictation", "err", err)
		}
		c.ReportError(msg)
		code, reason = websocket.StatusCode(4000+status%1000), msg
		return
	}
	defer sess.Close()
	c.setTargetRate(sess.SampleRate())
	log.Info("dictation client connected")

	st := sess.Status()
	c.send(statusMessage{
		Type:     "status",
		Mode:     st.Mode.String(),
		State:    st.State.String(),
		Attempts: st.Attempts,
		Preview:  st.Preview,
	})

	reads := make(chan error, 1)
	go func() { reads <- c.readLoop(ctx, conn, sess) }()

	select {
	case err := <-reads:
		if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
			log.Debug("dictation client read ended", "err", err)
		}
	case <-sess.Done():
		code, reason = statusSessionEnded, "dictation session closed"
	case <-ctx.Done():
		code = websocket.StatusGoingAway
	}
	log.Info("dictation client disconnected")
}

// wsClient is the browser side of a dictation session over one socket. It
// hands out microphone captures fed by binary frames and queues pipeline
// notifications for the writer. Observer and Reporter calls never block.
type wsClient struct {
	out chan any

	mu       sync.Mutex
	finished bool
	rateHz   int
	mic      micState
	format   audio.Format
	// micChanged is closed and replaced whenever the mic permission changes.
	micChanged chan struct{}
	capture    *wsCapture
	dropped    int
}

type micState int

const (
	micUnknown micState = iota
	micGranted
	micDenied
)

var (
	_ DictationClient = (*wsClient)(nil)
	_ speech.Capture  = (*wsCapture)(nil)
)

func newWSClient() *wsClient {
	return &wsClient{
		out:        make(chan any, outBuffer),
		micChanged: make(chan struct{}),
	}
}

func (c *wsClient) readLoop(ctx context.Context, conn *websocket.Conn, sess DictationSession) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ == websocket.MessageBinary {
			c.audio(data)
			continue
		}

		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.ReportError("Malformed message")
			continue
		}
		switch msg.Type {
		case "start":
			mode, err := dictation.ParseMode(msg.Mode)
			if err != nil {
				c.ReportError("Unknown dictation mode " + msg.Mode)
				continue
			}
			if err := sess.Start(mode); err != nil {
				return err
			}
		case "stop":
			sess.Stop()
		case "cursor":
			sess.SetCursor(msg.Position)
		case "mic":
			format := audio.Format{SampleRate: msg.SampleRate, Channels: msg.Channels, Encoding: audio.Encoding(msg.Encoding)}
			if err := format.Validate(); err != nil {
				c.ReportError("Unsupported audio format")
				continue
			}
			c.setMic(msg.Granted, format)
		default:
			c.ReportError("Unknown message type " + msg.Type)
		}
	}
}

// writeLoop sends queued messages until finish closes the queue. After a
// failed write the rest of the queue is discarded.
func (c *wsClient) writeLoop(ctx context.Context, conn *websocket.Conn) {
	failed := false
	for msg := range c.out {
		if failed {
			continue
		}
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := wsjson.Write(wctx, conn, msg)
		cancel()
		if err != nil {
			failed = true
			observe.Logger(ctx).Debug("dictation client write failed", "err", err)
		}
	}
}

func (c *wsClient) send(msg any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return
	}
	select {
	case c.out <- msg:
	default:
		c.dropped++
		if c.dropped == 1 {
			slog.Warn("dictation client is not keeping up, dropping messages")
		}
	}
}

// finish stops the client: the queue is closed and any capture ends.
func (c *wsClient) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return
	}
	c.finished = true
	close(c.out)
	c.endCaptureLocked()
	close(c.micChanged)
}

// setTargetRate sets the rate captured audio is converted to.
func (c *wsClient) setTargetRate(hz int) {
	c.mu.Lock()
	c.rateHz = hz
	c.mu.Unlock()
}

func (c *wsClient) setMic(granted bool, format audio.Format) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return
	}
	if granted {
		c.mic = micGranted
		c.format = format
	} else {
		c.mic = micDenied
		c.endCaptureLocked()
	}
	close(c.micChanged)
	c.micChanged = make(chan struct{})
}

// Acquire returns a capture once the client reported mic access. While the
// permission is unknown the client is asked for it and Acquire waits.
func (c *wsClient) Acquire(ctx context.Context) (speech.Capture, error) {
	asked := false
	for {
		c.mu.Lock()
		if c.finished {
			c.mu.Unlock()
			return nil, speech.ErrCaptureLost
		}
		switch c.mic {
		case micGranted:
			conv, err := audio.NewConverter(c.format, c.rateHz)
			if err != nil {
				c.mu.Unlock()
				return nil, err
			}
			c.endCaptureLocked()
			cp := &wsCapture{client: c, conv: conv, frames: make(chan []byte, frameBuffer)}
			c.capture = cp
			c.mu.Unlock()
			return cp, nil
		case micDenied:
			c.mu.Unlock()
			return nil, speech.ErrPermissionDenied
		}
		wait := c.micChanged
		c.mu.Unlock()

		if !asked {
			c.send(typeOnly{Type: "mic_request"})
			asked = true
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *wsClient) audio(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capture == nil {
		return
	}
	pcm := c.capture.conv.Convert(frame)
	if len(pcm) == 0 {
		return
	}
	select {
	case c.capture.frames <- pcm:
	default:
	}
}

func (c *wsClient) release(cp *wsCapture) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capture == cp {
		c.endCaptureLocked()
	}
}

func (c *wsClient) endCaptureLocked() {
	if c.capture != nil {
		close(c.capture.frames)
		c.capture = nil
	}
}

func (c *wsClient) ReportError(msg string) {
	c.send(errorMessage{Type: "error", Message: msg})
}

func (c *wsClient) ShowContent(content string, cursor int) {
	c.send(contentMessage{Type: "content", Content: content, Cursor: cursor})
}

func (c *wsClient) StateChanged(st dictation.State) {
	c.send(stateMessage{Type: "state", State: st.String()})
}

func (c *wsClient) SessionError(kind dictation.ErrorKind) {
	c.send(sessionErrorMessage{Type: "session_error", Kind: kind.String()})
}

func (c *wsClient) Restarting(attempt int, delay time.Duration) {
	c.send(restartingMessage{Type: "restarting", Attempt: attempt, DelayMs: delay.Milliseconds()})
}

func (c *wsClient) PreviewChanged(text string) {
	c.send(previewMessage{Type: "preview", Text: text})
}

// Committed is covered by the content message the commit's focus produces.
func (c *wsClient) Committed(string, int) {}

// wsCapture is one microphone claim. Frames closes when the client revokes
// access, a newer capture replaces it or the socket goes away.
type wsCapture struct {
	client *wsClient
	conv   *audio.Converter
	frames chan []byte
}

func (cp *wsCapture) Frames() <-chan []byte { return cp.frames }

func (cp *wsCapture) Close() { cp.client.release(cp) }
