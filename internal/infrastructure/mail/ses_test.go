package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/rs/zerolog"

	"github.com/nodi/console-identity/internal/core/ports"
)

type stubSES struct {
	in  *sesv2.SendEmailInput
	err error
}

func (s *stubSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	s.in = in
	if s.err != nil {
		return nil, s.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESNotifier_Send(t *testing.T) {
	stub := &stubSES{}
	n := newSESNotifier(stub, "noreply@nodi.example", zerolog.Nop())

	err := n.Send(context.Background(), ports.Message{
		Kind:    ports.KindInvitation,
		To:      "alice@example.com",
		Subject: "Welcome",
		HTML:    "<p>hi</p>",
		Text:    "hi",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	in := stub.in
	if aws.ToString(in.FromEmailAddress) != "noreply@nodi.example" {
		t.Errorf("from = %q", aws.ToString(in.FromEmailAddress))
	}
	if len(in.Destination.ToAddresses) != 1 || in.Destination.ToAddresses[0] != "alice@example.com" {
		t.Errorf("to = %v", in.Destination.ToAddresses)
	}
	simple := in.Content.Simple
	if aws.ToString(simple.Subject.Data) != "Welcome" {
		t.Errorf("subject = %q", aws.ToString(simple.Subject.Data))
	}
	if aws.ToString(simple.Body.Html.Data) != "<p>hi</p>" || aws.ToString(simple.Body.Text.Data) != "hi" {
		t.Errorf("unexpected body %+v", simple.Body)
	}
}

func TestSESNotifier_Send_Errors(t *testing.T) {
	stub := &stubSES{err: errors.New("throttled")}
	n := newSESNotifier(stub, "noreply@nodi.example", zerolog.Nop())

	if err := n.Send(context.Background(), ports.Message{Kind: ports.KindPasswordReset}); err == nil {
		t.Fatal("expected error for empty recipient")
	}
	if stub.in != nil {
		t.Fatal("SES must not be called without a recipient")
	}
	if err := n.Send(context.Background(), ports.Message{Kind: ports.KindPasswordReset, To: "a@b.co"}); err == nil {
		t.Fatal("expected provider error")
	}
}
