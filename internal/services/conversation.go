package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/pillpoint/pharmacy-backend/internal/ai"
	"github.com/pillpoint/pharmacy-backend/internal/models"
	"github.com/pillpoint/pharmacy-backend/internal/storage"
)

// Fixed patient-facing replies. The webhook never surfaces internal errors;
// every failure degrades to one of these.
const (
	ReplyNotFound         = "We couldn't find any delivery associated with your number. Please wait for a new message or call us."
	ReplyConfirmed        = "Thanks! We've marked it as ready."
	ReplyWhatToCorrect    = "Got it. What needs to be corrected?"
	ReplyHumanFallback    = "Sorry, we had trouble understanding that. A human will review it."
	contextWindowMessages = 5
)

// LLMClient is the narrow surface the engine needs from the language model.
// Implementations can swap between the hosted client and a local stub
// without touching engine logic.
type LLMClient interface {
	ClassifyIntent(ctx context.Context, message string, history []ai.ChatMessage) (ai.Intent, error)
	Respond(ctx context.Context, history []ai.ChatMessage) (string, error)
	ExtractCorrection(ctx context.Context, history []ai.ChatMessage) (ai.Correction, error)
}

// MessageSender dispatches one outbound message to a patient.
type MessageSender interface {
	SendSMS(to string, message string) error
}

// ConversationEngine interprets inbound patient replies against the active
// delivery for that number and drives the status state machine.
type ConversationEngine struct {
	store  storage.Store
	llm    LLMClient
	sender MessageSender

	// one lock per phone number, serializing concurrent turns for the
	// same patient (duplicate webhook deliveries, retransmissions)
	phoneLocks sync.Map
}

// NewConversationEngine creates the engine with its dependencies.
func NewConversationEngine(store storage.Store, llm LLMClient, sender MessageSender) *ConversationEngine {
	return &ConversationEngine{
		store:  store,
		llm:    llm,
		sender: sender,
	}
}

// HandleInbound processes one conversation turn and returns the reply text
// that was sent to the patient. It only returns an error for unusable input;
// internal failures degrade to a fixed fallback reply so the webhook can
// always acknowledge the message.
func (e *ConversationEngine) HandleInbound(ctx context.Context, phone, body string) (string, error) {
	if phone == "" {
		return "", fmt.Errorf("missing sender phone number")
	}

	lock := e.lockFor(phone)
	lock.Lock()
	defer lock.Unlock()

	delivery, err := e.store.GetActiveDelivery(phone)
	if err != nil {
		if storage.IsNotFound(err) {
			// Terminal for this message: no mutation, nothing logged.
			e.send(phone, ReplyNotFound)
			return ReplyNotFound, nil
		}
		log.Printf("❌ Active delivery lookup failed for %s: %v", phone, err)
		e.send(phone, ReplyHumanFallback)
		return ReplyHumanFallback, nil
	}

	// Log the inbound message verbatim before any interpretation so the
	// audit trail survives whatever fails later in the turn.
	if err := e.store.AppendMessage(phone, &delivery.ID, models.RoleUser, body); err != nil {
		log.Printf("❌ Failed to log inbound message from %s: %v", phone, err)
		e.send(phone, ReplyHumanFallback)
		return ReplyHumanFallback, nil
	}

	normalized := strings.ToLower(strings.TrimSpace(body))

	// Fast path for literal yes/no. The classifier is still consulted as a
	// confirmation check against a sarcastic or negated yes/no mid-exchange;
	// if it fails or disagrees the turn falls through to the general path.
	if normalized == "yes" || normalized == "no" {
		history, hErr := e.assembleContext(delivery)
		if hErr != nil {
			history = nil
		}
		intent, cErr := e.llm.ClassifyIntent(ctx, body, history)
		if cErr != nil {
			log.Printf("⚠️ Intent classification failed for %s: %v", phone, cErr)
		} else {
			log.Printf("🔍 Intent for %s classified as: %s", phone, intent)
			if normalized == "yes" && intent == ai.IntentConfirm {
				return e.resolveTurn(delivery, models.StatusReady, ReplyConfirmed)
			}
			if normalized == "no" && intent == ai.IntentCorrection {
				return e.resolveTurn(delivery, models.StatusCorrectionRequested, ReplyWhatToCorrect)
			}
		}
	}

	reply, err := e.generalTurn(ctx, delivery, body)
	if err != nil {
		log.Printf("❌ Conversation turn failed for %s: %v", phone, err)
		e.send(phone, ReplyHumanFallback)
		return ReplyHumanFallback, nil
	}
	return reply, nil
}

// resolveTurn applies a fast-path status transition and sends its fixed reply.
func (e *ConversationEngine) resolveTurn(delivery *models.Delivery, to models.DeliveryStatus, reply string) (string, error) {
	if err := e.transition(delivery, to); err != nil {
		log.Printf("❌ Status transition failed for delivery %d: %v", delivery.ID, err)
		e.send(delivery.PhoneNumber, ReplyHumanFallback)
		return ReplyHumanFallback, nil
	}
	if err := e.store.AppendMessage(delivery.PhoneNumber, &delivery.ID, models.RoleAssistant, reply); err != nil {
		log.Printf("⚠️ Failed to log assistant reply for %s: %v", delivery.PhoneNumber, err)
	}
	e.send(delivery.PhoneNumber, reply)
	return reply, nil
}

// generalTurn handles everything the fast path could not: produce a guiding
// reply, then attempt structured correction extraction against the same
// context. Any error here sends the caller down the human-fallback path.
func (e *ConversationEngine) generalTurn(ctx context.Context, delivery *models.Delivery, body string) (string, error) {
	history, err := e.assembleContext(delivery)
	if err != nil {
		return "", fmt.Errorf("assemble context: %w", err)
	}

	reply, err := e.llm.Respond(ctx, history)
	if err != nil {
		return "", fmt.Errorf("responder: %w", err)
	}

	// Log before sending; a send failure is not surfaced to the patient and
	// is not retried within this turn.
	if err := e.store.AppendMessage(delivery.PhoneNumber, &delivery.ID, models.RoleAssistant, reply); err != nil {
		return "", fmt.Errorf("log assistant reply: %w", err)
	}
	e.send(delivery.PhoneNumber, reply)

	correction, err := e.llm.ExtractCorrection(ctx, history)
	if err != nil {
		// Malformed or failed extraction means "no correction", never a
		// fatal error. The conversation continues on the next message.
		log.Printf("⚠️ Correction extraction failed for %s: %v", delivery.PhoneNumber, err)
		correction = ai.Correction{}
	}

	if !correction.Empty() {
		note := fmt.Sprintf("%s (corrected %s)", body, time.Now().Format(time.RFC3339))
		if err := e.store.ApplyCorrection(delivery.ID, correction.DeliveryAddress, correction.DeliveryTime, note); err != nil {
			return "", fmt.Errorf("apply correction: %w", err)
		}
		log.Printf("✅ Delivery %d updated with extracted correction", delivery.ID)
	}

	return reply, nil
}

// assembleContext builds the model context: the delivery on file, then the
// last few history rows for this delivery in chronological order. The
// inbound message was already logged, so it arrives as the final user entry.
func (e *ConversationEngine) assembleContext(delivery *models.Delivery) ([]ai.ChatMessage, error) {
	messages, err := e.store.GetRecentMessages(delivery.PhoneNumber, &delivery.ID, contextWindowMessages)
	if err != nil {
		return nil, err
	}

	history := make([]ai.ChatMessage, 0, len(messages)+1)
	history = append(history, ai.ChatMessage{
		Role: "system",
		Content: fmt.Sprintf("Delivery on file: Name: %s, Address: %s, Time: %s",
			delivery.PatientName, delivery.DeliveryAddress, delivery.DeliveryTime),
	})
	for _, msg := range messages {
		history = append(history, ai.ChatMessage{Role: msg.Role, Content: msg.Message})
	}
	return history, nil
}

// transition moves the delivery along the status table. Same-status moves are
// a no-op (a patient repeating "no" while already in correction_requested);
// off-table moves are rejected rather than trusting the caller.
func (e *ConversationEngine) transition(delivery *models.Delivery, to models.DeliveryStatus) error {
	if delivery.Status == to {
		return nil
	}
	if !models.CanTransition(delivery.Status, to) {
		return fmt.Errorf("invalid status transition %s -> %s", delivery.Status, to)
	}
	if err := e.store.UpdateDeliveryStatus(delivery.ID, to); err != nil {
		return err
	}
	delivery.Status = to
	return nil
}

func (e *ConversationEngine) send(phone, message string) {
	if err := e.sender.SendSMS(phone, message); err != nil {
		log.Printf("❌ Failed to send reply to %s: %v", phone, err)
	}
}

func (e *ConversationEngine) lockFor(phone string) *sync.Mutex {
	lock, _ := e.phoneLocks.LoadOrStore(phone, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
