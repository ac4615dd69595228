package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/villaclean/bookingcore/internal/application"
	"github.com/villaclean/bookingcore/internal/signature"
)

// maxWebhookBody bounds the form body accepted from the messaging transport.
const maxWebhookBody = 64 << 10

// emptyTwiML acknowledges a delivery without sending a reply through the
// transport; replies go out through the Notifier instead.
const emptyTwiML = `<Response></Response>`

type commandProcessor interface {
	Handle(ctx context.Context, msg application.InboundCommand) (application.Outcome, error)
}

// WebhookConfig configures the inbound message webhook.
type WebhookConfig struct {
	Processor     commandProcessor
	Verifier      *signature.Verifier
	PublicBaseURL string
	Tracer        trace.Tracer
	Now           func() time.Time
	Logger        *slog.Logger
}

// WebhookHandler receives inbound text messages from the messaging transport.
type WebhookHandler struct {
	processor     commandProcessor
	verifier      *signature.Verifier
	publicBaseURL string
	validate      *validator.Validate
	tracer        trace.Tracer
	now           func() time.Time
	responder     responder
	logger        *slog.Logger
}

// NewWebhookHandler constructs a webhook handler.
func NewWebhookHandler(cfg WebhookConfig) *WebhookHandler {
	base := defaultLogger(cfg.Logger)
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &WebhookHandler{
		processor:     cfg.Processor,
		verifier:      cfg.Verifier,
		publicBaseURL: cfg.PublicBaseURL,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		tracer:        tracer,
		now:           now,
		responder:     newResponder(base),
		logger:        base,
	}
}

func (h *WebhookHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "WebhookHandler", operation, attrs...)
}

// inboundForm is the subset of the transport's form fields the processor uses.
type inboundForm struct {
	MessageSid string `validate:"required,max=64,alphanum"`
	From       string `validate:"required,max=64"`
	Body       string `validate:"max=1600"`
}

// Inbound verifies the transport signature and hands the message to the
// command processor. Once the signature is valid the delivery is always
// acknowledged, so the transport does not redeliver it.
func (h *WebhookHandler) Inbound(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.processor == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "webhook.inbound")
	defer span.End()

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil || len(raw) > maxWebhookBody {
		h.log(ctx, "Inbound", "error_kind", "bad_request").WarnContext(ctx, "failed to read webhook body", "error", err, "bytes", len(raw))
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	publicURL := signature.ReconstructURL(r, h.publicBaseURL)
	if !h.verifier.Verify(raw, r.Header.Get(signature.Header), publicURL) {
		span.SetAttributes(attribute.Bool("webhook.signature_valid", false))
		rejected := &application.TransportError{Op: "verify signature"}
		h.log(ctx, "Inbound", "error_kind", application.ErrorKind(rejected), "public_url", publicURL).WarnContext(ctx, "webhook signature rejected", "error", rejected)
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	span.SetAttributes(attribute.Bool("webhook.signature_valid", true))

	form, err := h.decode(raw)
	if err != nil {
		h.log(ctx, "Inbound", "error_kind", application.ErrorKind(err)).WarnContext(ctx, "webhook payload rejected", "error", err)
		writeTwiML(w)
		return
	}

	logger := h.log(ctx, "Inbound", "message_id", form.MessageSid)
	outcome, err := h.processor.Handle(ctx, application.InboundCommand{
		MessageID:  form.MessageSid,
		From:       form.From,
		Body:       form.Body,
		ReceivedAt: h.now(),
	})
	span.SetAttributes(attribute.String("command.outcome", outcome.String()))
	if err != nil {
		span.RecordError(err)
		logger.ErrorContext(ctx, "inbound command failed", "error", err, "error_kind", application.ErrorKind(err))
	}
	writeTwiML(w)
}

func (h *WebhookHandler) decode(raw []byte) (inboundForm, error) {
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		vErr := &application.ValidationError{FieldErrors: map[string]string{"body": "payload must be form encoded"}}
		return inboundForm{}, vErr
	}
	form := inboundForm{
		MessageSid: strings.TrimSpace(values.Get("MessageSid")),
		From:       strings.TrimSpace(values.Get("From")),
		Body:       values.Get("Body"),
	}
	if err := h.validate.Struct(form); err != nil {
		return form, toValidationError(err)
	}
	return form, nil
}

func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	vErr := &application.ValidationError{FieldErrors: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		vErr.FieldErrors[fe.Field()] = "failed " + fe.Tag() + " check"
	}
	return vErr
}

func writeTwiML(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, emptyTwiML)
}
