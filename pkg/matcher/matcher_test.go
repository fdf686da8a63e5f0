package matcher_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/google/uuid"

	"github.com/supportflow/conversation-router/pkg/conversation"
	"github.com/supportflow/conversation-router/pkg/matcher"
	"github.com/supportflow/conversation-router/pkg/redaction"
)

type fakeStore struct {
	threadMatch *conversation.Conversation
	room        *conversation.Room
	candidates  []conversation.Conversation
	examples    []matcher.ResolvedExample
	examplesErr error
}

func (f *fakeStore) ConversationByThreadRoot(_ context.Context, _, _ string) (*conversation.Conversation, error) {
	return f.threadMatch, nil
}

func (f *fakeStore) RecentActiveConversations(_ context.Context, _ string, limit int) ([]conversation.Conversation, error) {
	if limit < len(f.candidates) {
		return f.candidates[:limit], nil
	}
	return f.candidates, nil
}

func (f *fakeStore) Room(_ context.Context, _ string) (*conversation.Room, error) {
	return f.room, nil
}

func (f *fakeStore) ResolvedExamples(_ context.Context, _ string, limit int) ([]matcher.ResolvedExample, error) {
	if f.examplesErr != nil {
		return nil, f.examplesErr
	}
	if limit < len(f.examples) {
		return f.examples[:limit], nil
	}
	return f.examples, nil
}

type fakeGate struct {
	enabled bool
	err     error
}

func (f *fakeGate) AIMatchingEnabled(context.Context, string) (bool, error) {
	return f.enabled, f.err
}

type fakeChat struct {
	resp    *matcher.ChatResponse
	err     error
	calls   int
	lastReq matcher.ChatRequest
}

func (f *fakeChat) Complete(_ context.Context, req matcher.ChatRequest) (*matcher.ChatResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func reply(content string) *matcher.ChatResponse {
	return &matcher.ChatResponse{
		Content: content,
		Usage:   matcher.TokenUsage{PromptTokens: 120, CompletionTokens: 15, TotalTokens: 135},
	}
}

func allTurnText(req matcher.ChatRequest) string {
	var out string
	for _, turn := range req.Turns {
		out += turn.Content + "\n"
	}
	return out
}

var _ = Describe("IdentifyConversation", func() {
	var (
		store  *fakeStore
		gate   *fakeGate
		chat   *fakeChat
		m      *matcher.Matcher
		now    time.Time
		first  conversation.Conversation
		second conversation.Conversation
	)

	newMessage := func() *conversation.IncomingMessage {
		return &conversation.IncomingMessage{
			ID:             "msg-1",
			RoomID:         "room-1",
			Text:           "any update on my refund?",
			Sender:         conversation.Sender{ID: "u1", Kind: conversation.SenderContact},
			Timestamp:      now,
			SensitiveSpans: []redaction.Span{},
		}
	}

	build := func() {
		eligibility, err := conversation.NewStartEligibility([]string{"contact"})
		Expect(err).NotTo(HaveOccurred())
		m = matcher.New(store, gate, chat,
			redaction.NewPolicyChecker(false), eligibility,
			matcher.Config{
				Model:           "gpt-4o",
				CandidateWindow: 10,
				FewShotLimit:    6,
			},
			matcher.WithClock(func() time.Time { return now }),
		)
	}

	BeforeEach(func() {
		now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		first = conversation.Conversation{
			ID:                  uuid.New(),
			RoomID:              "room-1",
			State:               conversation.StateNeedsResponse,
			Title:               "Refund for order 1234",
			LastMessagePostedOn: now.Add(-5 * time.Minute),
		}
		second = conversation.Conversation{
			ID:                  uuid.New(),
			RoomID:              "room-1",
			State:               conversation.StateWaiting,
			Title:               "Broken login",
			LastMessagePostedOn: now.Add(-20 * time.Minute),
		}
		store = &fakeStore{
			room:       &conversation.Room{ID: "room-1", OrgID: "org-1", ConversationTrackingEnabled: true},
			candidates: []conversation.Conversation{first, second},
		}
		gate = &fakeGate{enabled: true}
		chat = &fakeChat{resp: reply("[Thought]same topic[/Thought][Action]none[/Action]")}
		build()
	})

	Context("thread replies", func() {
		It("matches by thread root without consulting the model", func() {
			store.threadMatch = &first
			msg := newMessage()
			msg.ThreadID = "thread-1"

			conv, result, err := m.IdentifyConversation(context.Background(), msg)

			Expect(err).NotTo(HaveOccurred())
			Expect(conv).NotTo(BeNil())
			Expect(conv.ID).To(Equal(first.ID))
			Expect(result).To(BeNil(), "deterministic matches carry no AI evidence")
			Expect(chat.calls).To(BeZero())
		})

		It("reports orphaned thread replies as no conversation", func() {
			msg := newMessage()
			msg.ThreadID = "thread-gone"

			conv, result, err := m.IdentifyConversation(context.Background(), msg)

			Expect(err).NotTo(HaveOccurred())
			Expect(conv).To(BeNil())
			Expect(result).To(BeNil())
			Expect(chat.calls).To(BeZero())
		})
	})

	Context("eligibility and gating", func() {
		It("skips messages that could not start a conversation", func() {
			msg := newMessage()
			msg.Sender.Kind = conversation.SenderResponder

			conv, result, err := m.IdentifyConversation(context.Background(), msg)

			Expect(err).NotTo(HaveOccurred())
			Expect(conv).To(BeNil())
			Expect(result).To(BeNil())
			Expect(chat.calls).To(BeZero())
		})

		It("skips organizations with AI matching disabled", func() {
			gate.enabled = false

			conv, result, err := m.IdentifyConversation(context.Background(), newMessage())

			Expect(err).NotTo(HaveOccurred())
			Expect(conv).To(BeNil())
			Expect(result).To(BeNil())
			Expect(chat.calls).To(BeZero())
		})

		It("fails on unknown rooms", func() {
			store.room = nil

			_, _, err := m.IdentifyConversation(context.Background(), newMessage())

			Expect(err).To(HaveOccurred())
			Expect(chat.calls).To(BeZero())
		})
	})

	Context("candidate sets too small to be ambiguous", func() {
		It("never invokes the model with zero candidates", func() {
			store.candidates = nil

			conv, result, err := m.IdentifyConversation(context.Background(), newMessage())

			Expect(err).NotTo(HaveOccurred())
			Expect(conv).To(BeNil())
			Expect(result).NotTo(BeNil())
			Expect(result.Matched).To(BeFalse())
			Expect(result.Reason).To(Equal(matcher.ReasonNoCandidates))
			Expect(chat.calls).To(BeZero())
		})

		It("never invokes the model with a single candidate", func() {
			store.candidates = []conversation.Conversation{first}

			_, result, err := m.IdentifyConversation(context.Background(), newMessage())

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Reason).To(Equal(matcher.ReasonNoCandidates))
			Expect(chat.calls).To(BeZero())
		})
	})

	Context("redaction policy", func() {
		It("fails closed when PII detection did not run", func() {
			msg := newMessage()
			msg.SensitiveSpans = nil

			conv, result, err := m.IdentifyConversation(context.Background(), msg)

			Expect(err).NotTo(HaveOccurred())
			Expect(conv).To(BeNil())
			Expect(result.Reason).To(Equal(matcher.ReasonRedactionPolicy))
			Expect(chat.calls).To(BeZero())
		})

		It("proceeds unredacted when the policy allows it", func() {
			eligibility, err := conversation.NewStartEligibility([]string{"contact"})
			Expect(err).NotTo(HaveOccurred())
			m = matcher.New(store, gate, chat,
				redaction.NewPolicyChecker(true), eligibility,
				matcher.Config{Model: "gpt-4o", CandidateWindow: 10, FewShotLimit: 6},
				matcher.WithClock(func() time.Time { return now }),
			)
			msg := newMessage()
			msg.SensitiveSpans = nil

			_, result, err := m.IdentifyConversation(context.Background(), msg)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Reason).To(Equal(matcher.ReasonModelDeclined))
			Expect(chat.calls).To(Equal(1))
		})

		It("sends placeholders instead of detected values", func() {
			msg := newMessage()
			msg.Text = "my ssn is 123-45-6789, any update?"
			msg.SensitiveSpans = []redaction.Span{
				{Category: "ssn", Text: "123-45-6789", Start: 10, Length: 11, Confidence: 0.98},
			}

			_, result, err := m.IdentifyConversation(context.Background(), msg)

			Expect(err).NotTo(HaveOccurred())
			sent := allTurnText(chat.lastReq)
			Expect(sent).NotTo(ContainSubstring("123-45-6789"))
			Expect(sent).To(ContainSubstring("<SSN_1>"))
			Expect(result.Prompt).NotTo(ContainSubstring("123-45-6789"))
			Expect(result.Prompt).To(ContainSubstring("<SSN_1>"))
		})
	})

	Context("model responses", func() {
		It("returns the matched candidate", func() {
			chat.resp = reply("[Thought]continues the refund thread[/Thought][Action]" + first.ID.String() + "[/Action]")

			conv, result, err := m.IdentifyConversation(context.Background(), newMessage())

			Expect(err).NotTo(HaveOccurred())
			Expect(conv).NotTo(BeNil())
			Expect(conv.ID).To(Equal(first.ID))
			Expect(result.Matched).To(BeTrue())
			Expect(result.ConversationID).To(Equal(first.ID))
			Expect(result.RawCompletion).To(ContainSubstring(first.ID.String()))
			Expect(result.Usage.TotalTokens).To(Equal(int64(135)))
		})

		It("treats the none action as a declined match", func() {
			chat.resp = reply("[Thought]new topic entirely[/Thought][Action]none[/Action]")

			conv, result, err := m.IdentifyConversation(context.Background(), newMessage())

			Expect(err).NotTo(HaveOccurred())
			Expect(conv).To(BeNil())
			Expect(result.Matched).To(BeFalse())
			Expect(result.Reason).To(Equal(matcher.ReasonModelDeclined))
		})

		It("uses only the first pair of a multi-pair response", func() {
			chat.resp = reply("[Thought]a[/Thought][Action]none[/Action]" +
				"[Thought]b[/Thought][Action]" + first.ID.String() + "[/Action]")

			conv, result, err := m.IdentifyConversation(context.Background(), newMessage())

			Expect(err).NotTo(HaveOccurred())
			Expect(conv).To(BeNil())
			Expect(result.Reason).To(Equal(matcher.ReasonModelDeclined))
		})

		It("parses responses wrapped in a code fence", func() {
			chat.resp = reply("```\n[Thought]fits[/Thought][Action]" + second.ID.String() + "[/Action]\n```")

			conv, result, err := m.IdentifyConversation(context.Background(), newMessage())

			Expect(err).NotTo(HaveOccurred())
			Expect(conv).NotTo(BeNil())
			Expect(conv.ID).To(Equal(second.ID))
			Expect(result.Matched).To(BeTrue())
		})

		It("degrades malformed output to no match", func() {
			chat.resp = reply("not a valid response")

			conv, result, err := m.IdentifyConversation(context.Background(), newMessage())

			Expect(err).NotTo(HaveOccurred())
			Expect(conv).To(BeNil())
			Expect(result.Reason).To(Equal(matcher.ReasonMalformedResponse))
			Expect(result.RawCompletion).To(Equal("not a valid response"))
		})

		It("never guesses when the model names an unknown id", func() {
			chat.resp = reply("[Thought]hm[/Thought][Action]" + uuid.NewString() + "[/Action]")

			conv, result, err := m.IdentifyConversation(context.Background(), newMessage())

			Expect(err).NotTo(HaveOccurred())
			Expect(conv).To(BeNil())
			Expect(result.Reason).To(Equal(matcher.ReasonUnknownCandidate))
		})

		It("rejects actions that are not conversation ids", func() {
			chat.resp = reply("[Thought]hm[/Thought][Action]candidate 1[/Action]")

			conv, result, err := m.IdentifyConversation(context.Background(), newMessage())

			Expect(err).NotTo(HaveOccurred())
			Expect(conv).To(BeNil())
			Expect(result.Reason).To(Equal(matcher.ReasonUnknownCandidate))
		})

		It("degrades to no match when the model is unavailable", func() {
			chat.err = errors.New("upstream 503")

			conv, result, err := m.IdentifyConversation(context.Background(), newMessage())

			Expect(err).NotTo(HaveOccurred(), "classifier failures are not caller errors")
			Expect(conv).To(BeNil())
			Expect(result.Reason).To(Equal(matcher.ReasonClassificationUnavailable))
			Expect(result.Prompt).NotTo(BeEmpty(), "the prompt survives as evidence")
		})
	})

	Context("prompt assembly", func() {
		It("includes candidates and few-shot examples", func() {
			store.examples = []matcher.ResolvedExample{{
				CandidateLog: "1. Conversation old",
				MessageText:  "prior message",
				Answer:       "[Thought]prior[/Thought][Action]none[/Action]",
			}}

			_, _, err := m.IdentifyConversation(context.Background(), newMessage())

			Expect(err).NotTo(HaveOccurred())
			Expect(chat.lastReq.Model).To(Equal("gpt-4o"))
			Expect(chat.lastReq.Turns).To(HaveLen(4), "system, example pair, request")
			sent := allTurnText(chat.lastReq)
			Expect(sent).To(ContainSubstring(first.ID.String()))
			Expect(sent).To(ContainSubstring(second.ID.String()))
			Expect(sent).To(ContainSubstring("prior message"))
		})

		It("continues without examples when their lookup fails", func() {
			store.examplesErr = errors.New("table missing")

			_, result, err := m.IdentifyConversation(context.Background(), newMessage())

			Expect(err).NotTo(HaveOccurred())
			Expect(result).NotTo(BeNil())
			Expect(chat.calls).To(Equal(1))
			Expect(chat.lastReq.Turns).To(HaveLen(2), "system plus request only")
		})
	})
})
