package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"ecom-support/internal/domain/dialogue"
	"ecom-support/internal/domain/entity"
)

// Action keywords the user model emits when it decides an order needs work,
// and the notice appended to the reply for each.
const (
	RefundAction   = "initiate_refund"
	LocationAction = "change_location"

	RefundNotice   = "(Product queued for refund)"
	LocationNotice = "(Product shipping location has been changed)"
)

// UserPage is the reserved page identifier of the account/orders view.
const UserPage = "user"

var actionNotices = []struct {
	keyword string
	notice  string
}{
	{RefundAction, RefundNotice},
	{LocationAction, LocationNotice},
}

// Presets are the sampling settings used when a caller does not pass its own.
type Presets struct {
	Product entity.SamplingConfig
	User    entity.SamplingConfig
}

// Facade is the entry point the UI talks to. Every field is read-only after
// construction, so one Facade can serve concurrent calls.
type Facade struct {
	products *RecordIndex[entity.ProductRecord]
	users    *RecordIndex[entity.UserRecord]
	engine   *GenerationEngine
	presets  Presets
	layout   dialogue.Layout
	logger   *zap.Logger
}

func NewFacade(products *RecordIndex[entity.ProductRecord], users *RecordIndex[entity.UserRecord], engine *GenerationEngine, presets Presets, layout dialogue.Layout, logger *zap.Logger) *Facade {
	return &Facade{
		products: products,
		users:    users,
		engine:   engine,
		presets:  presets,
		layout:   layout,
		logger:   logger,
	}
}

// ProductInference answers a product question. additionalContext, when not
// empty, is appended to the retrieval query only; the prompt carries the
// question as asked.
func (f *Facade) ProductInference(ctx context.Context, question string, cfg entity.SamplingConfig, additionalContext string) (string, error) {
	cfg = cfg.Normalize(f.presets.Product)
	return infer(ctx, f, f.products, question, cfg, additionalContext)
}

// UserInference answers an account/order question and annotates the reply
// for every action keyword the model emitted. It does not perform the action.
func (f *Facade) UserInference(ctx context.Context, question string, cfg entity.SamplingConfig, additionalContext string) (string, error) {
	cfg = cfg.Normalize(f.presets.User)
	reply, err := infer(ctx, f, f.users, question, cfg, additionalContext)
	if err != nil {
		return "", err
	}
	return AnnotateActions(reply), nil
}

// Chat routes a question asked on page to the matching inference path with
// that path's sampling preset.
func (f *Facade) Chat(ctx context.Context, page, question string) (entity.Reply, error) {
	kind, topic := RoutePage(page)
	var (
		text string
		err  error
	)
	switch kind {
	case entity.KindUser:
		text, err = f.UserInference(ctx, question, f.presets.User, "")
	default:
		text, err = f.ProductInference(ctx, question, f.presets.Product, topic)
	}
	if err != nil {
		return entity.Reply{}, err
	}
	return entity.Reply{Kind: kind, Text: text}, nil
}

// Catalog returns the product collection in index order.
func (f *Facade) Catalog() []entity.ProductRecord { return f.products.Records() }

// Orders returns the user's order collection in index order.
func (f *Facade) Orders() []entity.UserRecord { return f.users.Records() }

// RoutePage maps a page identifier to a record kind and, for product pages,
// the topic hint derived from the page slug.
func RoutePage(page string) (entity.Kind, string) {
	page = strings.Trim(page, "/")
	if page == UserPage {
		return entity.KindUser, ""
	}
	return entity.KindProduct, strings.ReplaceAll(page, "_", " ")
}

// RetrievalQuery appends an optional topic hint to a question as is, with
// no separator, matching the text the indices were tuned against.
func RetrievalQuery(question, additionalContext string) string {
	return question + additionalContext
}

// AnnotateActions appends one notice per action keyword found in reply.
func AnnotateActions(reply string) string {
	for _, a := range actionNotices {
		if strings.Contains(reply, a.keyword) {
			reply += a.notice
		}
	}
	return reply
}

func infer[R entity.Owned[R]](ctx context.Context, f *Facade, ix *RecordIndex[R], question string, cfg entity.SamplingConfig, additionalContext string) (string, error) {
	start := time.Now()

	record, score, err := ix.Retrieve(ctx, RetrievalQuery(question, additionalContext))
	if err != nil {
		return "", err
	}

	prompt := f.engine.FitPrompt(f.layout.Fields(record), question)
	generated, err := f.engine.Generate(ctx, ix.Kind(), prompt, cfg)
	if err != nil {
		return "", err
	}
	reply := dialogue.ExtractReply(generated)

	f.logger.Info("inference served",
		zap.String("kind", string(ix.Kind())),
		zap.String("record", record.Name()),
		zap.Float32("score", score),
		zap.Int("prompt_tokens", CountTokens(prompt)),
		zap.Duration("latency", time.Since(start)))

	return reply, nil
}
