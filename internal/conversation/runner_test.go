package conversation_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/troupelabs/troupe/internal/character"
	"github.com/troupelabs/troupe/internal/conversation"
	"github.com/troupelabs/troupe/internal/history"
	"github.com/troupelabs/troupe/internal/pricing"
	"github.com/troupelabs/troupe/internal/provider"
	"github.com/troupelabs/troupe/internal/session"
)

// scriptedChat replies with a fixed line per turn and records the prompts
// it was sent.
type scriptedChat struct {
	model   string
	line    string
	fail    bool
	prompts []string
}

func (c *scriptedChat) SendStream(_ context.Context, prompt string) (<-chan provider.StreamChunk, error) {
	c.prompts = append(c.prompts, prompt)
	if c.fail {
		return nil, errors.New("connection reset")
	}
	ch := make(chan provider.StreamChunk, 1)
	ch <- provider.StreamChunk{Text: c.line, Usage: &provider.TokenUsage{Prompt: 5, Completion: 3}}
	close(ch)
	return ch, nil
}

func (c *scriptedChat) Model() string { return c.model }

type scriptedClient struct {
	chats map[string]*scriptedChat // keyed by model
}

func (f *scriptedClient) NewChat(model string, _ *provider.GenerationConfig) (provider.Chat, error) {
	chat := f.chats[model]
	if chat == nil {
		chat = &scriptedChat{}
	}
	chat.model = model
	return chat, nil
}

func (f *scriptedClient) Supports(string) bool { return true }
func (f *scriptedClient) Close() error         { return nil }

type spokenLine struct {
	voice, text string
}

type fakeSynth struct {
	lines []spokenLine
	err   error
}

func (s *fakeSynth) Speak(_ context.Context, voice, text string) error {
	s.lines = append(s.lines, spokenLine{voice: voice, text: text})
	return s.err
}

func testSheets() map[string]*character.Sheet {
	return map[string]*character.Sheet{
		"james": {Name: "james", Model: "model-james", Persona: "You are James.", Voice: "en-GB-RyanNeural"},
		"mary":  {Name: "mary", Model: "model-mary", Persona: "You are Mary.", Voice: "en-US-AriaNeural"},
	}
}

func testManager(client provider.Client) *session.Manager {
	return session.NewManager(client, pricing.DefaultTable(),
		session.WithSessionOptions(session.WithSleeper(func(time.Duration) {})),
	)
}

func TestRun_RoundRobin(t *testing.T) {
	t.Parallel()

	james := &scriptedChat{line: "Welcome, traveler."}
	mary := &scriptedChat{line: "Thank you kindly."}
	client := &scriptedClient{chats: map[string]*scriptedChat{"model-james": james, "model-mary": mary}}
	mgr := testManager(client)

	rec := history.NewMemoryRecorder()
	r := conversation.NewRunner(mgr, testSheets(), conversation.WithRecorder(rec))

	script := conversation.Script{
		Cast:             []string{"james", "mary"},
		Opening:          "A stranger enters the tavern.",
		Turns:            3,
		FlushDestination: "tavern_night",
	}
	if err := r.Run(context.Background(), script); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// james speaks turns 1 and 3, mary turn 2.
	if len(james.prompts) != 2 || len(mary.prompts) != 1 {
		t.Fatalf("turn distribution = %d/%d, want 2/1", len(james.prompts), len(mary.prompts))
	}

	if james.prompts[0] != "A stranger enters the tavern." {
		t.Errorf("opening prompt = %q", james.prompts[0])
	}

	// mary's turn runs on context alone: james's line under his label.
	want := "Context:\n[james] Welcome, traveler.\n\nUser Query:"
	if mary.prompts[0] != want {
		t.Errorf("mary's prompt = %q, want %q", mary.prompts[0], want)
	}

	// james's second turn carries mary's reply.
	if !strings.Contains(james.prompts[1], "[mary] Thank you kindly.") {
		t.Errorf("james's second prompt missing mary's line: %q", james.prompts[1])
	}

	// All three turns flushed at the end.
	if got := len(rec.Records("tavern_night")); got != 3 {
		t.Errorf("flushed records = %d, want 3", got)
	}
}

func TestRun_Narration(t *testing.T) {
	t.Parallel()

	james := &scriptedChat{line: "Welcome."}
	mary := &scriptedChat{line: "Hello."}
	client := &scriptedClient{chats: map[string]*scriptedChat{"model-james": james, "model-mary": mary}}

	synth := &fakeSynth{}
	r := conversation.NewRunner(testManager(client), testSheets(), conversation.WithSynthesizer(synth))

	script := conversation.Script{
		Cast:    []string{"james", "mary"},
		Opening: "Begin.",
		Turns:   2,
		Narrate: true,
	}
	if err := r.Run(context.Background(), script); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(synth.lines) != 2 {
		t.Fatalf("spoken lines = %d, want 2", len(synth.lines))
	}
	if synth.lines[0] != (spokenLine{voice: "en-GB-RyanNeural", text: "Welcome."}) {
		t.Errorf("line[0] = %+v", synth.lines[0])
	}
	if synth.lines[1] != (spokenLine{voice: "en-US-AriaNeural", text: "Hello."}) {
		t.Errorf("line[1] = %+v", synth.lines[1])
	}
}

func TestRun_NarrationFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	james := &scriptedChat{line: "Welcome."}
	mary := &scriptedChat{line: "Hello."}
	client := &scriptedClient{chats: map[string]*scriptedChat{"model-james": james, "model-mary": mary}}

	synth := &fakeSynth{err: errors.New("tts down")}
	r := conversation.NewRunner(testManager(client), testSheets(), conversation.WithSynthesizer(synth))

	script := conversation.Script{Cast: []string{"james", "mary"}, Opening: "Begin.", Turns: 2, Narrate: true}
	if err := r.Run(context.Background(), script); err != nil {
		t.Fatalf("narration failure must not abort the run: %v", err)
	}
}

func TestRun_UnknownCastMember(t *testing.T) {
	t.Parallel()

	client := &scriptedClient{chats: map[string]*scriptedChat{}}
	r := conversation.NewRunner(testManager(client), testSheets())

	script := conversation.Script{Cast: []string{"james", "ghost"}, Opening: "Begin.", Turns: 2}
	err := r.Run(context.Background(), script)
	if err == nil || !strings.Contains(err.Error(), "ghost") {
		t.Fatalf("want sheet error naming ghost, got %v", err)
	}
}

func TestRun_AbortsOnUnreachableButStillFlushes(t *testing.T) {
	t.Parallel()

	james := &scriptedChat{line: "Welcome."}
	mary := &scriptedChat{fail: true}
	client := &scriptedClient{chats: map[string]*scriptedChat{"model-james": james, "model-mary": mary}}

	rec := history.NewMemoryRecorder()
	r := conversation.NewRunner(testManager(client), testSheets(), conversation.WithRecorder(rec))

	script := conversation.Script{
		Cast:             []string{"james", "mary"},
		Opening:          "Begin.",
		Turns:            4,
		FlushDestination: "show",
	}
	err := r.Run(context.Background(), script)
	if !errors.Is(err, provider.ErrUnreachable) {
		t.Fatalf("want ErrUnreachable, got %v", err)
	}

	// mary exhausted three attempts; james's completed turn survives.
	if len(mary.prompts) != 3 {
		t.Errorf("mary attempts = %d, want 3", len(mary.prompts))
	}
	if got := len(rec.Records("show")); got != 1 {
		t.Errorf("flushed records = %d, want 1", got)
	}
}
