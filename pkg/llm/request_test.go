package llm_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cipherbob/pkg/llm"
)

var _ = Describe("ChatRequest", func() {
	Describe("ParseChatRequest", func() {
		It("keeps the messages bytes untouched", func() {
			body := []byte(`{"messages":[{"role":"user","content":"hi","extra":{"n":1}}]}`)

			req, err := llm.ParseChatRequest(body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(req.Messages)).To(Equal(`[{"role":"user","content":"hi","extra":{"n":1}}]`))
		})

		It("leaves Messages empty when the field is absent", func() {
			req, err := llm.ParseChatRequest([]byte(`{"prompt":"hi"}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(req.Messages).To(BeEmpty())
		})

		It("distinguishes an explicit null from an absent field", func() {
			req, err := llm.ParseChatRequest([]byte(`{"messages":null}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(req.Messages)).To(Equal("null"))
		})

		It("rejects malformed JSON", func() {
			_, err := llm.ParseChatRequest([]byte(`{"messages":`))
			Expect(err).To(HaveOccurred())
		})

		It("rejects a top-level array", func() {
			_, err := llm.ParseChatRequest([]byte(`[1,2,3]`))
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("MessagesRequest", func() {
	It("carries the fixed model settings and the client messages", func() {
		chat := &llm.ChatRequest{Messages: json.RawMessage(`[{"role":"user","content":"hi"}]`)}

		req, err := llm.NewMessagesRequest("claude-3-haiku-20240307", 150, chat)
		Expect(err).NotTo(HaveOccurred())

		data, err := json.Marshal(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(MatchJSON(`{
			"model": "claude-3-haiku-20240307",
			"max_tokens": 150,
			"messages": [{"role":"user","content":"hi"}]
		}`))
	})

	It("fails when messages are missing", func() {
		_, err := llm.NewMessagesRequest("m", 1, &llm.ChatRequest{})
		Expect(err).To(MatchError(llm.ErrMissingMessages))
	})

	It("fails on a nil chat request", func() {
		_, err := llm.NewMessagesRequest("m", 1, nil)
		Expect(err).To(MatchError(llm.ErrMissingMessages))
	})
})

var _ = Describe("HasErrorMarker", func() {
	It("detects an upstream error payload", func() {
		body := []byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)
		Expect(llm.HasErrorMarker(body)).To(BeTrue())
	})

	It("ignores a normal completion", func() {
		body := []byte(`{"type":"message","content":[{"type":"text","text":"hello"}]}`)
		Expect(llm.HasErrorMarker(body)).To(BeFalse())
	})

	It("only matches the quoted form", func() {
		Expect(llm.HasErrorMarker([]byte(`{"text":"no error here"}`))).To(BeFalse())
	})

	It("does not see escaped quotes inside completion text", func() {
		body := []byte(`{"content":[{"type":"text","text":"say \"error\""}]}`)
		Expect(llm.HasErrorMarker(body)).To(BeFalse())
	})

	It("fires on any unrelated field whose value is error", func() {
		body := []byte(`{"content":[{"type":"text","text":"x"}],"note":"error","k":"error"}`)
		Expect(llm.HasErrorMarker(body)).To(BeTrue())
	})
})
