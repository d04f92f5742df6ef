package returns

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type recordingPayouts struct {
	opened []uuid.UUID
	err    error
}

func (r *recordingPayouts) EnsureForOrder(_ context.Context, tx *gorm.DB, order *models.Order) (*models.Payout, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if r.err != nil {
		return nil, r.err
	}
	r.opened = append(r.opened, order.ID)
	return &models.Payout{OrderID: order.ID}, nil
}

type returnsFixture struct {
	client  *db.Client
	svc     Service
	payouts *recordingPayouts
	now     time.Time
}

func newReturnsFixture(t *testing.T) *returnsFixture {
	t.Helper()
	client := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	fx := &returnsFixture{client: client, payouts: &recordingPayouts{}, now: deliveredAt.Add(time.Hour)}
	svc, err := NewService(ServiceParams{
		Tx:      client,
		Orders:  orders.NewRepository(client.DB()),
		Payouts: fx.payouts,
		Outbox:  outbox.NewService(outbox.NewRepository(client.DB()), logg),
		Logger:  logg,
		Now:     func() time.Time { return fx.now },
	})
	require.NoError(t, err)
	fx.svc = svc
	return fx
}

func (fx *returnsFixture) seed(t *testing.T, method enums.PaymentMethod) *models.Order {
	t.Helper()
	at := deliveredAt
	order := &models.Order{
		Code:   "ORD-RET-" + uuid.NewString()[:8],
		UserID: uuid.New(),
		Status: enums.OrderStatusDelivered,
		Items: []types.OrderItem{
			{LineID: uuid.New(), ProductID: uuid.New(), Name: "Lamp", UnitPriceMinor: 200, Quantity: 2, LineTotalMinor: 400, Status: enums.LineItemStatusActive},
			{LineID: uuid.New(), ProductID: uuid.New(), Name: "Rug", UnitPriceMinor: 600, Quantity: 1, LineTotalMinor: 600, Status: enums.LineItemStatusActive},
		},
		ShippingAddress: types.AddressSnapshot{Name: "Asha", City: "Pune"},
		Currency:        "INR",
		SubtotalMinor:   1000,
		GrandTotalMinor: 1000,
		PaymentMethod:   method,
		PaymentStatus:   enums.PaymentStatusPending,
		DeliveredAt:     &at,
	}
	require.NoError(t, orders.NewRepository(fx.client.DB()).Create(context.Background(), order))
	return order
}

func admin() orders.Actor { return orders.Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin} }

func TestReturnRequestSnapshotsSelectedItems(t *testing.T) {
	fx := newReturnsFixture(t)
	order := fx.seed(t, enums.PaymentMethodCOD)

	got, err := fx.svc.Request(context.Background(), order.UserID, order.ID, RequestInput{
		Items:  []RequestItem{{LineID: order.Items[0].LineID, Quantity: 1}},
		Reason: "Damaged",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusReturnRequested, got.Status)
	assert.Equal(t, enums.ReturnStatusPending, got.Return.Status)
	require.Len(t, got.Return.Items, 1)
	assert.Equal(t, 1, got.Return.Items[0].Quantity)
	assert.Equal(t, int64(200), got.Return.Items[0].LineTotalMinor)
	assert.Equal(t, "Lamp", got.Return.Items[0].Name)
}

func TestReturnRequestValidatesSelection(t *testing.T) {
	fx := newReturnsFixture(t)
	order := fx.seed(t, enums.PaymentMethodCOD)
	ctx := context.Background()

	cases := map[string][]RequestItem{
		"too many":  {{LineID: order.Items[0].LineID, Quantity: 3}},
		"unknown":   {{LineID: uuid.New(), Quantity: 1}},
		"duplicate": {{LineID: order.Items[0].LineID, Quantity: 1}, {LineID: order.Items[0].LineID, Quantity: 1}},
		"empty":     {},
	}
	for name, items := range cases {
		_, err := fx.svc.Request(ctx, order.UserID, order.ID, RequestInput{Items: items, Reason: "x"})
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), name)
	}

	_, err := fx.svc.Request(ctx, uuid.New(), order.ID, RequestInput{Items: []RequestItem{{LineID: order.Items[0].LineID, Quantity: 1}}, Reason: "x"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestReturnRequestOutsideWindowFails(t *testing.T) {
	fx := newReturnsFixture(t)
	order := fx.seed(t, enums.PaymentMethodCOD)
	fx.now = deliveredAt.Add(DefaultWindow)

	_, err := fx.svc.Request(context.Background(), order.UserID, order.ID, RequestInput{
		Items:  []RequestItem{{LineID: order.Items[0].LineID, Quantity: 1}},
		Reason: "Late",
	})
	require.Error(t, err)
	assert.Equal(t, ReasonWindowClosed, pkgerrors.As(err).Message())

	res, err := fx.svc.CheckEligibility(context.Background(), order.UserID, order.ID)
	require.NoError(t, err)
	assert.False(t, res.Eligible)
	assert.Equal(t, ReasonWindowClosed, res.Reason)
}

func TestRejectRestoresDeliveredAndAllowsNewRequest(t *testing.T) {
	fx := newReturnsFixture(t)
	order := fx.seed(t, enums.PaymentMethodCOD)
	ctx := context.Background()
	input := RequestInput{Items: []RequestItem{{LineID: order.Items[1].LineID, Quantity: 1}}, Reason: "Wrong colour"}

	_, err := fx.svc.Request(ctx, order.UserID, order.ID, input)
	require.NoError(t, err)
	got, err := fx.svc.Reject(ctx, admin(), order.ID, RejectInput{Category: "used", Reason: "Item shows wear"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, got.Status)
	assert.Equal(t, enums.ReturnStatusRejected, got.Return.Status)
	assert.Equal(t, "used", got.Return.RejectionCategory)
	require.NotNil(t, got.DeliveredAt)
	assert.True(t, deliveredAt.Equal(*got.DeliveredAt))

	_, err = fx.svc.Request(ctx, order.UserID, order.ID, input)
	assert.NoError(t, err)
}

func TestApproveAndReceiveOpensPayoutForCOD(t *testing.T) {
	fx := newReturnsFixture(t)
	order := fx.seed(t, enums.PaymentMethodCOD)
	ctx := context.Background()

	_, err := fx.svc.Approve(ctx, admin(), order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = fx.svc.Request(ctx, order.UserID, order.ID, RequestInput{Items: []RequestItem{{LineID: order.Items[0].LineID, Quantity: 2}}, Reason: "Broken"})
	require.NoError(t, err)

	_, err = fx.svc.MarkReceived(ctx, admin(), order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	approved, err := fx.svc.Approve(ctx, admin(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusReturning, approved.Status)
	assert.Equal(t, enums.ReturnStatusApproved, approved.Return.Status)

	received, err := fx.svc.MarkReceived(ctx, admin(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusReturned, received.Status)
	assert.Equal(t, enums.LineItemStatusReturned, received.Items[0].Status)
	assert.Equal(t, enums.LineItemStatusActive, received.Items[1].Status)
	assert.Equal(t, "Broken", received.Items[0].ReturnReason)
	assert.NotNil(t, received.ReturnedAt)
	assert.Equal(t, []uuid.UUID{order.ID}, fx.payouts.opened)
}

func TestReceiveGatewayReturnSkipsPayout(t *testing.T) {
	fx := newReturnsFixture(t)
	order := fx.seed(t, enums.PaymentMethodGateway)
	ctx := context.Background()

	_, err := fx.svc.Request(ctx, order.UserID, order.ID, RequestInput{Items: []RequestItem{{LineID: order.Items[0].LineID, Quantity: 1}}, Reason: "Broken"})
	require.NoError(t, err)
	_, err = fx.svc.Approve(ctx, admin(), order.ID)
	require.NoError(t, err)
	_, err = fx.svc.MarkReceived(ctx, admin(), order.ID)
	require.NoError(t, err)
	assert.Empty(t, fx.payouts.opened)
}

func TestReceiveRollsBackWhenPayoutFails(t *testing.T) {
	fx := newReturnsFixture(t)
	order := fx.seed(t, enums.PaymentMethodCOD)
	ctx := context.Background()

	_, err := fx.svc.Request(ctx, order.UserID, order.ID, RequestInput{Items: []RequestItem{{LineID: order.Items[0].LineID, Quantity: 1}}, Reason: "Broken"})
	require.NoError(t, err)
	_, err = fx.svc.Approve(ctx, admin(), order.ID)
	require.NoError(t, err)

	fx.payouts.err = pkgerrors.New(pkgerrors.CodeInternal, "boom")
	_, err = fx.svc.MarkReceived(ctx, admin(), order.ID)
	require.Error(t, err)

	current, err := orders.NewRepository(fx.client.DB()).FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusReturning, current.Status)
	assert.Equal(t, enums.LineItemStatusActive, current.Items[0].Status)
}
