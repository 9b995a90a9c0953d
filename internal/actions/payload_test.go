package actions

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodePayloadEmailSend(t *testing.T) {
	raw := json.RawMessage(`{"to":["kai@example.com"],"subject":"Quote ready","html":"<p>hi</p>"}`)
	payload, err := DecodePayload(TypeEmailSend, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	email, ok := payload.(EmailSendPayload)
	if !ok {
		t.Fatalf("wrong variant: %T", payload)
	}
	if email.Subject != "Quote ready" {
		t.Fatalf("subject: %q", email.Subject)
	}
	if payload.PayloadType() != TypeEmailSend {
		t.Fatalf("type: %s", payload.PayloadType())
	}
}

func TestDecodePayloadMissingRequiredField(t *testing.T) {
	raw := json.RawMessage(`{"to":["kai@example.com"],"subject":"no body"}`)
	if _, err := DecodePayload(TypeEmailSend, raw); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestDecodePayloadUnknownField(t *testing.T) {
	raw := json.RawMessage(`{"recipient":"kai","body":"hello","extra":true}`)
	if _, err := DecodePayload(TypeDMSend, raw); err == nil {
		t.Fatalf("expected validation error for unknown field")
	}
}

func TestDecodePayloadUnknownType(t *testing.T) {
	if _, err := DecodePayload(Type("teleport"), json.RawMessage(`{}`)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDecodePayloadEmpty(t *testing.T) {
	if _, err := DecodePayload(TypeDMSend, nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDecodePayloadAllVariants(t *testing.T) {
	cases := map[Type]string{
		TypeDMSend:         `{"recipient":"kai","body":"hello"}`,
		TypeWebsiteReply:   `{"thread_id":"th_1","body":"thanks"}`,
		TypeCreateTask:     `{"title":"Follow up","assigned_to":"jordan_lee"}`,
		TypeContentRequest: `{"kind":"ad_copy","brief":"spring promo"}`,
	}
	for actionType, raw := range cases {
		payload, err := DecodePayload(actionType, json.RawMessage(raw))
		if err != nil {
			t.Fatalf("%s: %v", actionType, err)
		}
		if payload.PayloadType() != actionType {
			t.Fatalf("%s: variant type %s", actionType, payload.PayloadType())
		}
		if payload.Summary() == "" {
			t.Fatalf("%s: empty summary", actionType)
		}
	}
}

func TestSummaryTruncates(t *testing.T) {
	p := DMSendPayload{Recipient: "kai", Body: strings.Repeat("x", 500)}
	if len(p.Summary()) > 140 {
		t.Fatalf("summary too long: %d", len(p.Summary()))
	}
	if !strings.HasSuffix(p.Summary(), "...") {
		t.Fatalf("expected ellipsis: %q", p.Summary())
	}
}

func TestCreateTaskPayloadRevenueImpactEnum(t *testing.T) {
	raw := json.RawMessage(`{"title":"t","assigned_to":"a","revenue_impact":"massive"}`)
	if _, err := DecodePayload(TypeCreateTask, raw); err == nil {
		t.Fatalf("expected enum validation error")
	}
}
