// Package imagepipeline is the image pipeline sink (C9): a durable
// subscription over image-processor callbacks that applies the produced
// image set to the owning document inside a C4 transaction.
package imagepipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vellumapp/platform/internal/bus"
	"github.com/vellumapp/platform/internal/docstore"
	"github.com/vellumapp/platform/internal/domain"
	"github.com/vellumapp/platform/internal/errs"
	"github.com/vellumapp/platform/internal/txrunner"
)

// Status is the lifecycle stage one image-processor callback reports.
type Status string

const (
	StatusStart   Status = "start"
	StatusSuccess Status = "success"
	StatusFail    Status = "fail"
	StatusCancel  Status = "cancel"
)

// Callback is the decoded payload of one image-processor callback message.
type Callback struct {
	Status  Status             `json:"status"`
	Input   *domain.ImageFile  `json:"input,omitempty"`
	Outputs []domain.ImageFile `json:"outputs,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// Target identifies the document a callback applies to, decoded from its
// subject: "<prefix>emote.<id>", "<prefix>profile-picture.<id>",
// "<prefix>paint.<id>.layer.<layer_id>", "<prefix>badge.<id>" (§6, §4.9).
type Target struct {
	Kind    string
	ID      string
	LayerID string
}

func parseSubject(prefix, subject string) (Target, error) {
	rest := strings.TrimPrefix(subject, prefix)
	parts := strings.Split(rest, ".")
	switch {
	case len(parts) == 2 && parts[0] == "emote":
		return Target{Kind: "emote", ID: parts[1]}, nil
	case len(parts) == 2 && parts[0] == "profile-picture":
		return Target{Kind: "profile-picture", ID: parts[1]}, nil
	case len(parts) == 2 && parts[0] == "badge":
		return Target{Kind: "badge", ID: parts[1]}, nil
	case len(parts) == 4 && parts[0] == "paint" && parts[2] == "layer":
		return Target{Kind: "paint", ID: parts[1], LayerID: parts[3]}, nil
	default:
		return Target{}, fmt.Errorf("unrecognized image callback subject %q", subject)
	}
}

// Consumer subscribes to the image processor callback subject and applies
// each callback inside a C4 transaction.
type Consumer struct {
	bus     bus.Bus
	runner  *txrunner.Runner
	gateway *docstore.Gateway
	prefix  string
	log     zerolog.Logger
}

func NewConsumer(b bus.Bus, runner *txrunner.Runner, gateway *docstore.Gateway, callbackPrefix string, log zerolog.Logger) *Consumer {
	return &Consumer{
		bus:     b,
		runner:  runner,
		gateway: gateway,
		prefix:  callbackPrefix,
		log:     log.With().Str("component", "imagepipeline").Logger(),
	}
}

// Run subscribes durably under the callback prefix wildcard and blocks until
// ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.bus.Subscribe(ctx, c.prefix+">", "image-pipeline", c.handle)
}

// handle decodes one message and applies it. Returning an error naks the
// message for redelivery with backoff, per a parse failure or a failed
// transaction; returning nil acks it only once the transaction committed.
func (c *Consumer) handle(ctx context.Context, msg bus.Message) error {
	target, err := parseSubject(c.prefix, msg.Subject)
	if err != nil {
		c.log.Warn().Err(err).Str("subject", msg.Subject).Msg("unparseable image callback subject")
		return err
	}

	var cb Callback
	if err := msg.Decode(&cb); err != nil {
		c.log.Warn().Err(err).Str("subject", msg.Subject).Msg("unparseable image callback payload")
		return err
	}

	if cb.Status == StatusStart {
		return nil
	}

	_, err = txrunner.Run(ctx, c.runner, "image_callback_"+target.Kind, func(ctx context.Context, tx *txrunner.Tx) (struct{}, error) {
		return struct{}{}, c.apply(ctx, tx, target, cb)
	})
	return err
}

func (c *Consumer) apply(ctx context.Context, tx *txrunner.Tx, target Target, cb Callback) error {
	switch target.Kind {
	case "emote":
		return c.applyEmote(ctx, tx, target, cb)
	case "profile-picture":
		return c.applyProfilePicture(ctx, tx, target, cb)
	case "badge":
		return c.applyBadge(ctx, tx, target, cb)
	case "paint":
		return c.applyPaintLayer(ctx, tx, target, cb)
	default:
		return errs.New(errs.KindBadRequest, "unknown image callback target kind")
	}
}

func (c *Consumer) applyEmote(ctx context.Context, tx *txrunner.Tx, target Target, cb Callback) error {
	repo := docstore.NewRepository[domain.Emote](c.gateway, docstore.CollEmotes)
	emote, err := repo.FindByID(ctx, target.ID)
	if err != nil {
		return err
	}

	emote.Pending = false
	if cb.Status == StatusSuccess {
		set := domain.NewImageSet(imageFileOrZero(cb.Input), cb.Outputs)
		emote.ImageSet = &set
	}
	emote.UpdatedAt = time.Now().UTC()

	if err := repo.UpsertByID(ctx, emote.ID, emote); err != nil {
		return err
	}
	tx.RegisterEvent(imageProcessedEvent(emote.OwnerID, emote.ID, "emote", cb))
	return nil
}

func (c *Consumer) applyProfilePicture(ctx context.Context, tx *txrunner.Tx, target Target, cb Callback) error {
	repo := docstore.NewRepository[domain.User](c.gateway, docstore.CollUsers)
	user, err := repo.FindByID(ctx, target.ID)
	if err != nil {
		return err
	}

	user.ProfilePicturePending = false
	if cb.Status == StatusSuccess {
		set := domain.NewImageSet(imageFileOrZero(cb.Input), cb.Outputs)
		user.ProfilePicture = &set
	}
	user.UpdatedAt = time.Now().UTC()

	if err := repo.UpsertByID(ctx, user.ID, user); err != nil {
		return err
	}
	tx.RegisterEvent(imageProcessedEvent(user.ID, user.ID, "profile-picture", cb))
	return nil
}

func (c *Consumer) applyBadge(ctx context.Context, tx *txrunner.Tx, target Target, cb Callback) error {
	repo := docstore.NewRepository[domain.Badge](c.gateway, docstore.CollBadges)
	badge, err := repo.FindByID(ctx, target.ID)
	if err != nil {
		return err
	}

	badge.Pending = false
	if cb.Status == StatusSuccess {
		set := domain.NewImageSet(imageFileOrZero(cb.Input), cb.Outputs)
		badge.ImageSet = &set
	}
	badge.UpdatedAt = time.Now().UTC()

	if err := repo.UpsertByID(ctx, badge.ID, badge); err != nil {
		return err
	}
	tx.RegisterEvent(imageProcessedEvent("", badge.ID, "badge", cb))
	return nil
}

func (c *Consumer) applyPaintLayer(ctx context.Context, tx *txrunner.Tx, target Target, cb Callback) error {
	repo := docstore.NewRepository[domain.Paint](c.gateway, docstore.CollPaints)
	paint, err := repo.FindByID(ctx, target.ID)
	if err != nil {
		return err
	}

	layer := paintLayer(&paint, target.LayerID)
	if layer == nil {
		return errs.New(errs.KindNotFound, "paint layer not found")
	}

	layer.Pending = false
	if cb.Status == StatusSuccess {
		set := domain.NewImageSet(imageFileOrZero(cb.Input), cb.Outputs)
		layer.ImageSet = &set
	}
	paint.UpdatedAt = time.Now().UTC()

	if err := repo.UpsertByID(ctx, paint.ID, paint); err != nil {
		return err
	}
	tx.RegisterEvent(imageProcessedEvent("", paint.ID, "paint", cb))
	return nil
}

// paintLayer finds the layer with the given id on a locally-held copy of
// paint, so the caller can mutate it in place before upserting the whole
// document back (Paint has no per-layer collection of its own).
func paintLayer(paint *domain.Paint, layerID string) *domain.PaintLayer {
	for i := range paint.Layers {
		if paint.Layers[i].ID == layerID {
			return &paint.Layers[i]
		}
	}
	return nil
}

func imageFileOrZero(f *domain.ImageFile) domain.ImageFile {
	if f == nil {
		return domain.ImageFile{}
	}
	return *f
}

func imageProcessedEvent(actorID, subjectID, kind string, cb Callback) domain.Event {
	data := map[string]any{
		"status": string(cb.Status),
		"target": kind,
	}
	if cb.Error != "" {
		data["error"] = cb.Error
	}
	return domain.NewEvent(domain.EventImageProcessed, actorID, subjectID, data, time.Now().UTC())
}
