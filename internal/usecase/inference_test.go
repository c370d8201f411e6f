package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ecom-support/internal/adapter/store"
	"ecom-support/internal/domain/dialogue"
	"ecom-support/internal/domain/entity"
)

var testPresets = Presets{
	Product: entity.SamplingConfig{MaxNewTokens: 256, Temperature: 0.3, TopK: 50, TopP: 1},
	User:    entity.SamplingConfig{MaxNewTokens: 256, Temperature: 0.2, TopK: 20, TopP: 1},
}

func orders() []entity.UserRecord {
	return []entity.UserRecord{
		{ProductName: "Fancy house plant", Price: "$29.99", OrderStatus: "delivered", Location: "Boston", Refundable: "yes"},
		{ProductName: "Microwave", Price: "$89", OrderStatus: "shipped", Location: "Denver", Refundable: "no"},
	}
}

type facadeFixture struct {
	facade  *Facade
	product *scriptedGenerator
	user    *scriptedGenerator
}

func newFacadeFixture(t *testing.T, productReply, userReply string) facadeFixture {
	t.Helper()
	ctx := context.Background()
	emb := newKeywordEmbedder(vocab...)

	products, err := BuildIndex(ctx, catalog(), emb, store.NewMemoryIndex(), zap.NewNop())
	require.NoError(t, err)
	users, err := BuildIndex(ctx, orders(), emb, store.NewMemoryIndex(), zap.NewNop())
	require.NoError(t, err)

	product := &scriptedGenerator{reply: productReply}
	user := &scriptedGenerator{reply: userReply}
	engine := NewGenerationEngine(product, user, 0, zap.NewNop())

	return facadeFixture{
		facade:  NewFacade(products, users, engine, testPresets, dialogue.SharedLayout, zap.NewNop()),
		product: product,
		user:    user,
	}
}

func TestProductInference_GroundsPromptInRetrievedRecord(t *testing.T) {
	fx := newFacadeFixture(t, "\nThe Portable Projector costs $199.<|end|>", "")

	reply, err := fx.facade.ProductInference(context.Background(), "How much is the portable projector?", testPresets.Product, "")
	require.NoError(t, err)
	assert.Equal(t, "The Portable Projector costs $199.", reply)

	prompt := fx.product.lastPrompt()
	assert.Contains(t, prompt, "product_name: Portable Projector\n")
	assert.Contains(t, prompt, "price: $199\n")
	assert.Contains(t, prompt, "<|user|>\nHow much is the portable projector?<|end|>\n")
	assert.True(t, strings.HasSuffix(prompt, dialogue.AssistantMarker))
	assert.Equal(t, 0, fx.user.callCount())
}

func TestProductInference_AdditionalContextSteersRetrievalOnly(t *testing.T) {
	fx := newFacadeFixture(t, "It ships with a pot.<|end|>", "")

	_, err := fx.facade.ProductInference(context.Background(), "Does it come with anything?", entity.SamplingConfig{}, "Fancy house plant")
	require.NoError(t, err)

	prompt := fx.product.lastPrompt()
	assert.Contains(t, prompt, "product_name: Fancy house plant\n")
	assert.Contains(t, prompt, "<|user|>\nDoes it come with anything?<|end|>\n")
	// zero temperature is greedy decoding and survives normalization
	assert.Equal(t, entity.SamplingConfig{MaxNewTokens: 256, Temperature: 0, TopK: 50, TopP: 1}, fx.product.cfgs[0])
}

func TestProductInference_NeverAnnotates(t *testing.T) {
	fx := newFacadeFixture(t, "Say initiate_refund to me.<|end|>", "")

	reply, err := fx.facade.ProductInference(context.Background(), "projector", testPresets.Product, "")
	require.NoError(t, err)
	assert.Equal(t, "Say initiate_refund to me.", reply)
}

func TestUserInference_RefundNotice(t *testing.T) {
	fx := newFacadeFixture(t, "", "Sure, I will process that. initiate_refund<|end|>")

	reply, err := fx.facade.UserInference(context.Background(), "I want a refund for my plant", testPresets.User, "")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(reply, RefundNotice))
	assert.Equal(t, 1, strings.Count(reply, RefundNotice))
	assert.NotContains(t, reply, LocationNotice)

	prompt := fx.user.lastPrompt()
	assert.Contains(t, prompt, "product_name: Fancy house plant\n")
	assert.Contains(t, prompt, "price: $29.99\n")
	assert.Contains(t, prompt, "refundable: yes\n")
	assert.NotContains(t, prompt, "order_status:")
	assert.NotContains(t, prompt, "location:")
	assert.Equal(t, testPresets.User, fx.user.cfgs[0])
}

func TestUserInference_NoActionLeavesReplyUnchanged(t *testing.T) {
	fx := newFacadeFixture(t, "", "Your microwave has shipped.<|end|>")

	reply, err := fx.facade.UserInference(context.Background(), "Where is my microwave?", testPresets.User, "")
	require.NoError(t, err)
	assert.Equal(t, "Your microwave has shipped.", reply)
}

func TestUserInference_ModelUnavailable(t *testing.T) {
	fx := newFacadeFixture(t, "", "")
	fx.user.errs = []error{errors.New("connection refused")}

	_, err := fx.facade.UserInference(context.Background(), "Where is my microwave?", testPresets.User, "")
	assert.ErrorIs(t, err, entity.ErrModelUnavailable)
}

func TestChat_RoutesByPage(t *testing.T) {
	fx := newFacadeFixture(t, "Product answer.<|end|>", "Order answer. change_location<|end|>")

	reply, err := fx.facade.Chat(context.Background(), "user", "Please send my microwave to Austin")
	require.NoError(t, err)
	assert.Equal(t, entity.KindUser, reply.Kind)
	assert.Equal(t, "Order answer. change_location"+LocationNotice, reply.Text)
	assert.Equal(t, testPresets.User, fx.user.cfgs[0])

	reply, err = fx.facade.Chat(context.Background(), "/Portable_Projector", "What is the warranty?")
	require.NoError(t, err)
	assert.Equal(t, entity.KindProduct, reply.Kind)
	assert.Equal(t, "Product answer.", reply.Text)
	assert.Contains(t, fx.product.lastPrompt(), "product_name: Portable Projector\n")
	assert.Equal(t, testPresets.Product, fx.product.cfgs[0])
}

func TestCatalogAndOrders(t *testing.T) {
	fx := newFacadeFixture(t, "", "")
	assert.Equal(t, catalog(), fx.facade.Catalog())
	assert.Equal(t, orders(), fx.facade.Orders())
}

func TestRoutePage(t *testing.T) {
	tests := []struct {
		page      string
		wantKind  entity.Kind
		wantTopic string
	}{
		{"user", entity.KindUser, ""},
		{"/user", entity.KindUser, ""},
		{"portable_projector", entity.KindProduct, "portable projector"},
		{"/Fancy_house_plant", entity.KindProduct, "Fancy house plant"},
		{"", entity.KindProduct, ""},
	}
	for _, tt := range tests {
		t.Run(tt.page, func(t *testing.T) {
			kind, topic := RoutePage(tt.page)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantTopic, topic)
		})
	}
}

func TestRetrievalQuery(t *testing.T) {
	assert.Equal(t, "is it refundable?", RetrievalQuery("is it refundable?", ""))
	assert.Equal(t, "is it refundable?Microwave", RetrievalQuery("is it refundable?", "Microwave"))
}

func TestUserInference_SchemaLayout(t *testing.T) {
	fx := newFacadeFixture(t, "", "It was delivered.<|end|>")
	facade := NewFacade(fx.facade.products, fx.facade.users, fx.facade.engine, testPresets, dialogue.SchemaLayout, zap.NewNop())

	_, err := facade.UserInference(context.Background(), "Where is my plant?", testPresets.User, "")
	require.NoError(t, err)
	assert.Contains(t, fx.user.lastPrompt(), "order_status: delivered\n")
	assert.Contains(t, fx.user.lastPrompt(), "location: Boston\n")
}

func TestProductInference_LongRecordKeepsPromptGrammar(t *testing.T) {
	ctx := context.Background()
	long := catalog()
	long[1].Description = entity.Scalar(strings.Repeat("bright pocket projector for movies ", 100))

	emb := newKeywordEmbedder(vocab...)
	products, err := BuildIndex(ctx, long, emb, store.NewMemoryIndex(), zap.NewNop())
	require.NoError(t, err)
	users, err := BuildIndex(ctx, orders(), emb, store.NewMemoryIndex(), zap.NewNop())
	require.NoError(t, err)

	gen := &scriptedGenerator{reply: "\nIt costs $199.<|end|>"}
	engine := NewGenerationEngine(gen, gen, 64, zap.NewNop())
	facade := NewFacade(products, users, engine, testPresets, dialogue.SharedLayout, zap.NewNop())

	reply, err := facade.ProductInference(ctx, "How much is the portable projector?", testPresets.Product, "")
	require.NoError(t, err)
	assert.Equal(t, "It costs $199.", reply)

	prompt := gen.lastPrompt()
	assert.True(t, strings.HasPrefix(prompt, dialogue.SystemMarker+"\n"))
	assert.Contains(t, prompt, "product_name: Portable Projector\n")
	assert.Contains(t, prompt, "<|user|>\nHow much is the portable projector?<|end|>\n")
	assert.LessOrEqual(t, CountTokens(prompt), 64)
}

func TestAnnotateActions(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"none", "All good.", "All good."},
		{"refund", "initiate_refund", "initiate_refund" + RefundNotice},
		{"location", "ok change_location", "ok change_location" + LocationNotice},
		{"both", "initiate_refund change_location", "initiate_refund change_location" + RefundNotice + LocationNotice},
		{"repeated keyword", "initiate_refund initiate_refund", "initiate_refund initiate_refund" + RefundNotice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AnnotateActions(tt.reply))
		})
	}
}
