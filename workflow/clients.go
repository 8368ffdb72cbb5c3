package workflow

import (
	"context"
	"strings"

	"github.com/mmdatafocus/voicebill_backend/config"
	"github.com/mmdatafocus/voicebill_backend/matching"
	"github.com/mmdatafocus/voicebill_backend/models"
	"github.com/mmdatafocus/voicebill_backend/utils"
	"github.com/sirupsen/logrus"
)

// ContactInfo is the contact detail dictated alongside a client name. Empty fields are ignored.
type ContactInfo struct {
	Email   string
	Phone   string
	Address string
}

type ClientResult struct {
	Success           bool                 `json:"success"`
	Kind              OutcomeKind          `json:"kind"`
	Message           string               `json:"message,omitempty"`
	Client            *models.Client       `json:"client,omitempty"`
	Created           bool                 `json:"created"`
	NeedsConfirmation bool                 `json:"needs_confirmation"`
	Similarity        float64              `json:"similarity"`
	Suggestions       matching.Suggestions `json:"suggestions,omitempty"`
}

// ResolveOrCreateClient finds the client a spoken name refers to, creating one when nothing in the
// directory is a plausible match. A plausible but unconfident match is returned for confirmation
// and left untouched.
func (o *Orchestrator) ResolveOrCreateClient(ctx context.Context, name string, contact ContactInfo) (ClientResult, error) {
	ownerId, err := utils.RequireOwnerId(ctx)
	if err != nil {
		return ClientResult{}, err
	}
	ctx, span := tracer.Start(ctx, "client.resolve")
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return ClientResult{Kind: OutcomeInvalidRequest, Message: "I need the client's name."}, nil
	}
	update, msg := o.normalizeContact(contact)
	if msg != "" {
		return ClientResult{Kind: OutcomeInvalidRequest, Message: msg}, nil
	}

	clients, err := o.Store.ListClients(ctx, ownerId)
	if err != nil {
		config.LogError(o.Logger, "Orchestrator", "ResolveOrCreateClient", "ListClients", name, err)
		return ClientResult{Kind: OutcomePersistenceFailure, Message: msgPersistenceFailure}, nil
	}
	directory := models.ClientDirectory(clients)
	lookup := o.Matcher.LookupClient(name, directory)

	if lookup.Found {
		var client *models.Client
		for _, c := range clients {
			if c.ID == lookup.Candidate.ClientId {
				client = c
				break
			}
		}
		if client != nil && lookup.NeedsConfirmation {
			return ClientResult{
				Kind:              OutcomeNeedsConfirmation,
				Message:           "Did you mean " + client.Name + "?",
				Client:            client,
				NeedsConfirmation: true,
				Similarity:        lookup.Candidate.Similarity,
				Suggestions:       o.Matcher.FindSimilarClients(name, directory),
			}, nil
		}
		if client != nil {
			if !update.IsEmpty() {
				client, err = o.Store.UpdateClientContact(ctx, ownerId, client.ID, update)
				if err != nil {
					config.LogError(o.Logger, "Orchestrator", "ResolveOrCreateClient", "UpdateClientContact", lookup.Candidate.ClientId, err)
					return ClientResult{Kind: OutcomePersistenceFailure, Message: msgPersistenceFailure}, nil
				}
			}
			return ClientResult{Success: true, Kind: OutcomeSuccess, Client: client, Similarity: lookup.Candidate.Similarity}, nil
		}
	}

	client := &models.Client{OwnerId: ownerId, Name: name}
	if update.Email != nil {
		client.Email = *update.Email
	}
	if update.Phone != nil {
		client.Phone = *update.Phone
	}
	if update.Address != nil {
		client.Address = *update.Address
	}
	if err := o.Store.CreateClient(ctx, client); err != nil {
		config.LogError(o.Logger, "Orchestrator", "ResolveOrCreateClient", "CreateClient", name, err)
		return ClientResult{Kind: OutcomePersistenceFailure, Message: msgPersistenceFailure}, nil
	}
	o.Logger.WithFields(logrus.Fields{
		"field":     "Orchestrator",
		"owner_id":  ownerId,
		"client_id": client.ID,
	}).Info("created client on demand")
	return ClientResult{Success: true, Kind: OutcomeSuccess, Client: client, Created: true}, nil
}

// normalizeContact validates dictated contact details. The message is user-facing and empty when valid.
func (o *Orchestrator) normalizeContact(contact ContactInfo) (models.ClientContact, string) {
	var update models.ClientContact
	if email := strings.TrimSpace(contact.Email); email != "" {
		if !utils.IsValidEmail(email) {
			return update, "That email address doesn't look right."
		}
		update.Email = &email
	}
	if phone := strings.TrimSpace(contact.Phone); phone != "" {
		region := o.PhoneRegion
		if region == "" {
			region = config.DefaultPhoneRegion()
		}
		normalized, err := utils.NormalizePhoneNumber(phone, region)
		if err != nil {
			return update, "That phone number doesn't look right."
		}
		update.Phone = &normalized
	}
	if address := strings.TrimSpace(contact.Address); address != "" {
		update.Address = &address
	}
	return update, ""
}
