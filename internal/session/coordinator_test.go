package session_test

import (
	"context"
	"errors"
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"fractionalhub.app/concierge/internal/model"
	"fractionalhub.app/concierge/internal/session"
	"fractionalhub.app/concierge/internal/transport"
)

var _ = Describe("Coordinator", func() {
	var (
		coord     *session.Coordinator
		dialer    *mockDialer
		relay     *mockToolRelay
		analyzerB *mockAnalyzer
		analyzerC *mockAnalyzer
		memory    *mockMemory
		tokens    *mockTokens
		resume    *mockResume

		ctx    context.Context
		cancel context.CancelFunc
	)

	profile := model.Profile{
		UserID:          "user-1",
		FirstName:       "Jo",
		LastName:        "Bloggs",
		Email:           "jo@example.com",
		IsAuthenticated: true,
		CurrentCountry:  "GB",
	}

	newCoordinator := func(p model.Profile) *session.Coordinator {
		c := session.NewCoordinator(
			session.Config{Profile: p, PriorContext: "prior context", ConfigID: "cfg-1"},
			session.Deps{
				Dialer:             dialer,
				Tokens:             tokens,
				ToolRelay:          relay,
				TranscriptAnalyzer: analyzerB,
				PythonAnalyzer:     analyzerC,
				Memory:             memory,
				Resume:             resume,
			},
		)
		go c.Run(ctx)
		return c
	}

	connect := func(c *session.Coordinator) *fakeTransport {
		before := len(dialer.dialedSettings())
		c.Connect()
		Eventually(func() session.ConnState { return c.Snapshot().Conn }).Should(Equal(session.StateConnected))
		Eventually(func() int { return len(dialer.dialedSettings()) }).Should(Equal(before + 1))
		return dialer.lastTransport()
	}

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		dialer = &mockDialer{}
		relay = &mockToolRelay{}
		analyzerB = &mockAnalyzer{}
		analyzerC = &mockAnalyzer{}
		memory = &mockMemory{}
		tokens = &mockTokens{}
		resume = newMockResume()
		coord = newCoordinator(profile)
	})

	AfterEach(func() {
		coord.Stop()
		cancel()
	})

	Describe("connecting", func() {
		It("passes the token, config, and session variables to the transport", func() {
			connect(coord)

			settings := dialer.dialedSettings()[0]
			Expect(settings.AccessToken).To(Equal("test-token"))
			Expect(settings.ConfigID).To(Equal("cfg-1"))
			Expect(settings.ResumedChatGroupID).To(BeEmpty())
			Expect(settings.Variables["user_id"]).To(Equal("user-1"))
			Expect(settings.Variables["first_name"]).To(Equal("Jo"))
			Expect(settings.Variables["is_authenticated"]).To(Equal("true"))
			Expect(settings.Variables["previous_context"]).To(Equal("prior context"))
		})

		It("stays disconnected with the error flag set when dialing fails", func() {
			dialer.dialFn = func(context.Context, transport.ConnectSettings) (session.Transport, error) {
				return nil, errors.New("vendor unreachable")
			}
			coord.Connect()

			Eventually(func() bool { return coord.Snapshot().ErrorFlag }).Should(BeTrue())
			Expect(coord.Snapshot().Conn).To(Equal(session.StateDisconnected))
		})
	})

	Describe("utterance reconstruction", func() {
		It("collapses consecutive assistant fragments into one space-joined turn", func() {
			ft := connect(coord)
			ft.deliver(assistantMsg("Hi "))
			ft.deliver(assistantMsg("there"))
			ft.deliver(userMsg("hello"))

			Eventually(func() []model.Turn { return coord.Snapshot().Turns }).Should(Equal([]model.Turn{
				{Role: model.RoleAssistant, Content: "Hi there"},
				{Role: model.RoleUser, Content: "hello"},
			}))
		})

		It("never merges consecutive user fragments", func() {
			ft := connect(coord)
			ft.deliver(userMsg("first thing"))
			ft.deliver(userMsg("second thing"))

			Eventually(func() []model.Turn { return coord.Snapshot().Turns }).Should(Equal([]model.Turn{
				{Role: model.RoleUser, Content: "first thing"},
				{Role: model.RoleUser, Content: "second thing"},
			}))
		})

		It("treats whitespace-only fragments as absent", func() {
			ft := connect(coord)
			ft.deliver(assistantMsg("Hello"))
			ft.deliver(assistantMsg("   "))
			ft.deliver(userMsg("  "))
			ft.deliver(userMsg("real input"))

			Eventually(func() []model.Turn { return coord.Snapshot().Turns }).Should(Equal([]model.Turn{
				{Role: model.RoleAssistant, Content: "Hello"},
				{Role: model.RoleUser, Content: "real input"},
			}))
		})

		It("flushes the in-progress assistant turn on stream end", func() {
			ft := connect(coord)
			ft.deliver(userMsg("hello"))
			ft.deliver(assistantMsg("bye "))
			ft.deliver(assistantMsg("now"))
			coord.Disconnect()

			Eventually(func() []model.Turn { return coord.Snapshot().Turns }).Should(Equal([]model.Turn{
				{Role: model.RoleUser, Content: "hello"},
				{Role: model.RoleAssistant, Content: "bye now"},
			}))
		})
	})

	Describe("analyzer fan-out", func() {
		It("skips both analyzers at or below the threshold", func() {
			ft := connect(coord)
			ft.deliver(userMsg("12345678901234567890")) // exactly 20 chars

			Consistently(func() int { return analyzerB.callCount() }).Should(BeZero())
			Expect(analyzerC.callCount()).To(BeZero())
		})

		It("invokes both analyzers once per qualifying message", func() {
			ft := connect(coord)
			ft.deliver(userMsg("I am looking for a fractional CFO role"))

			Eventually(func() int { return analyzerB.callCount() }).Should(Equal(1))
			Eventually(func() int { return analyzerC.callCount() }).Should(Equal(1))

			// An assistant fragment is also a qualifying event, and an
			// unchanged transcript is expected to re-invoke the backends.
			ft.deliver(assistantMsg("Let me look."))
			Eventually(func() int { return analyzerB.callCount() }).Should(Equal(2))
			Eventually(func() int { return analyzerC.callCount() }).Should(Equal(2))
		})

		It("sends the user-only transcript, never assistant text", func() {
			ft := connect(coord)
			ft.deliver(assistantMsg("What role are you after?"))
			ft.deliver(userMsg("a fractional CTO role in Manchester"))

			Eventually(func() int { return analyzerB.callCount() }).Should(BeNumerically(">=", 1))
			for _, transcript := range analyzerB.seenTranscripts() {
				Expect(transcript).NotTo(ContainSubstring("What role"))
				Expect(transcript).To(ContainSubstring("fractional CTO"))
			}
		})

		It("keeps analyzer failures independent of each other", func() {
			analyzerB.analyzeFn = func(context.Context, string, string) (*model.ExtractionResult, error) {
				return nil, errors.New("backend b down")
			}
			analyzerC.analyzeFn = func(context.Context, string, string) (*model.ExtractionResult, error) {
				return &model.ExtractionResult{
					Type: model.ResultTypeJobs,
					Jobs: []model.Job{{ID: 7, Title: "Fractional CISO", Company: "Acme"}},
				}, nil
			}

			ft := connect(coord)
			ft.deliver(userMsg("I need a fractional CISO in London"))

			Eventually(func() []model.Job {
				return coord.Snapshot().Buckets[model.MethodPython].Jobs
			}).Should(HaveLen(1))
			Expect(coord.Snapshot().Buckets[model.MethodTranscript].Jobs).To(BeEmpty())
		})
	})

	Describe("tool-call dispatch", func() {
		jobContent := `{"type":"job_results","jobs":[{"id":1,"title":"Fractional CFO","company":"Acme","location":"London","isRemote":true,"dayRate":900,"currency":"GBP","slug":"fractional-cfo"}]}`

		It("relays the response content verbatim, correlated by call id", func() {
			relay.relayFn = func(_ context.Context, toolCallID, name, parameters string) (string, error) {
				return jobContent, nil
			}

			ft := connect(coord)
			ft.deliver(toolCallMsg("tc-9", "search_jobs", `{"role":"cfo"}`))

			Eventually(func() []sentToolMessage { return ft.sentMessages() }).Should(HaveLen(1))
			sent := ft.sentMessages()[0]
			Expect(sent.IsError).To(BeFalse())
			Expect(sent.ToolCallID).To(Equal("tc-9"))
			Expect(sent.Content).To(Equal(jobContent))
			Expect(relay.callIDs()).To(Equal([]string{"tc-9"}))
		})

		It("pushes job results from the tool response into the method A bucket", func() {
			relay.relayFn = func(_ context.Context, _, _, _ string) (string, error) {
				return jobContent, nil
			}

			ft := connect(coord)
			ft.deliver(toolCallMsg("tc-1", "search_jobs", `{}`))

			Eventually(func() []model.Job {
				return coord.Snapshot().Buckets[model.MethodToolCall].Jobs
			}).Should(HaveLen(1))
			Expect(coord.Snapshot().Buckets[model.MethodToolCall].Jobs[0].Slug).To(Equal("fractional-cfo"))
		})

		It("sends a tool error with the static failure tag on relay failure", func() {
			relay.relayFn = func(_ context.Context, _, _, _ string) (string, error) {
				return "", errors.New("gateway 502")
			}

			ft := connect(coord)
			ft.deliver(toolCallMsg("tc-2", "search_jobs", `{}`))

			Eventually(func() []sentToolMessage { return ft.sentMessages() }).Should(HaveLen(1))
			sent := ft.sentMessages()[0]
			Expect(sent.IsError).To(BeTrue())
			Expect(sent.ToolCallID).To(Equal("tc-2"))
			Expect(sent.ErrorTag).To(Equal("Tool execution failed"))
			Expect(sent.Content).To(ContainSubstring("gateway 502"))
			Expect(coord.Snapshot().Buckets[model.MethodToolCall].Jobs).To(BeEmpty())
		})
	})

	Describe("session-end persistence", func() {
		longUtterance := "I am looking for a fractional CFO position in London, two days a week"

		It("saves the flattened transcript once per connect-disconnect cycle", func() {
			ft := connect(coord)
			ft.deliver(userMsg(longUtterance))
			coord.Disconnect()

			Eventually(func() []string { return memory.savedTranscripts() }).Should(HaveLen(1))
			Expect(memory.savedTranscripts()[0]).To(Equal("User: " + longUtterance))
			Consistently(func() []string { return memory.savedTranscripts() }).Should(HaveLen(1))
		})

		It("re-arms the latch on reconnect", func() {
			ft := connect(coord)
			ft.deliver(userMsg(longUtterance))
			coord.Disconnect()
			Eventually(func() []string { return memory.savedTranscripts() }).Should(HaveLen(1))

			connect(coord)
			coord.Disconnect()
			Eventually(func() []string { return memory.savedTranscripts() }).Should(HaveLen(2))
		})

		It("does not save short transcripts", func() {
			ft := connect(coord)
			ft.deliver(userMsg("short but present text ok")) // flattens to <= 50 chars
			coord.Disconnect()

			Eventually(func() session.ConnState { return coord.Snapshot().Conn }).Should(Equal(session.StateDisconnected))
			Consistently(func() []string { return memory.savedTranscripts() }).Should(BeEmpty())
		})

		It("does not save without a known user", func() {
			anon := newCoordinator(model.Profile{})
			defer anon.Stop()

			ft := connect(anon)
			ft.deliver(userMsg(longUtterance))
			anon.Disconnect()

			Eventually(func() session.ConnState { return anon.Snapshot().Conn }).Should(Equal(session.StateDisconnected))
			Consistently(func() []string { return memory.savedTranscripts() }).Should(BeEmpty())
		})
	})

	Describe("conversation resume", func() {
		It("persists the chat group id and resumes with it on the next connect", func() {
			ft := connect(coord)
			ft.deliver(transport.Message{Type: transport.TypeChatMetadata, ChatGroupID: "cg-77"})

			Eventually(func() string {
				v, _ := resume.Get("user-1")
				return v
			}).Should(Equal("cg-77"))

			coord.Disconnect()
			Eventually(func() session.ConnState { return coord.Snapshot().Conn }).Should(Equal(session.StateDisconnected))

			connect(coord)
			settings := dialer.dialedSettings()
			Expect(settings[len(settings)-1].ResumedChatGroupID).To(Equal("cg-77"))
		})
	})

	Describe("unknown messages", func() {
		It("logs and skips unrecognized message types", func() {
			ft := connect(coord)
			ft.deliver(transport.Message{Type: transport.TypeUnknown, RawType: "audio_output"})

			Eventually(func() string {
				var b strings.Builder
				for _, e := range coord.Snapshot().Debug {
					fmt.Fprintln(&b, e.Message)
				}
				return b.String()
			}).Should(ContainSubstring("unknown message type: audio_output"))
		})
	})
})

func userMsg(content string) transport.Message {
	return transport.Message{Type: transport.TypeUserUtterance, Content: content}
}

func assistantMsg(content string) transport.Message {
	return transport.Message{Type: transport.TypeAssistantUtterance, Content: content}
}

func toolCallMsg(id, name, parameters string) transport.Message {
	return transport.Message{Type: transport.TypeToolCall, ToolCallID: id, ToolName: name, Parameters: parameters}
}
