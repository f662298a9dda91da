package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tickethub/internal/payment"
	"tickethub/internal/repo"
	"tickethub/internal/status"
	"tickethub/models"

	"github.com/shopspring/decimal"
)

func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// fakeStore is the shared in-memory backing for the repository fakes. Every
// operation takes the store mutex, so the conditional transitions behave
// like their SQL counterparts. txMu serializes WithTx units the way the
// SQLite store serializes transactions.
type fakeStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	events     map[string]*models.Event
	categories map[string]*models.TicketCategory
	orders     map[string]*models.Order
	tickets    []models.Ticket
	affiliates map[string]*models.Affiliate
	sales      []models.AffiliateSale
	audits     []models.AuditEntry

	nextID int
}

func newFakeStore() (*fakeStore, *repo.Store) {
	f := &fakeStore{
		events:     map[string]*models.Event{},
		categories: map[string]*models.TicketCategory{},
		orders:     map[string]*models.Order{},
		affiliates: map[string]*models.Affiliate{},
	}
	store := &repo.Store{
		Events:     &fakeEvents{f},
		Orders:     &fakeOrders{f},
		Tickets:    &fakeTickets{f},
		Affiliates: &fakeAffiliates{f},
		Audit:      &fakeAudit{f},
	}
	store.RunTx = func(fn func(tx *repo.Store) error) error {
		f.txMu.Lock()
		defer f.txMu.Unlock()
		return fn(store)
	}
	return f, store
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%06d", prefix, f.nextID)
}

func (f *fakeStore) seedEvent(title string) *models.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := &models.Event{ID: f.id("evt"), Title: title, Venue: "KICC"}
	f.events[e.ID] = e
	return e
}

func (f *fakeStore) seedCategory(eventID, name string, price float64, total int) *models.TicketCategory {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &models.TicketCategory{
		ID:            f.id("cat"),
		EventID:       eventID,
		Name:          name,
		Price:         decimalFromFloat(price),
		TotalQuantity: total,
	}
	f.categories[c.ID] = c
	return c
}

func (f *fakeStore) seedAffiliate(code string, rate float64) *models.Affiliate {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := &models.Affiliate{
		ID:             f.id("aff"),
		Name:           "Affiliate " + code,
		ReferralCode:   code,
		CommissionRate: decimalFromFloat(rate),
	}
	f.affiliates[a.ID] = a
	return a
}

func (f *fakeStore) orderByID(id string) models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.orders[id]
}

func (f *fakeStore) ticketsForOrder(orderID string) []models.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Ticket
	for _, t := range f.tickets {
		if t.OrderID == orderID {
			out = append(out, t)
		}
	}
	return out
}

func (f *fakeStore) auditActions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	actions := make([]string, 0, len(f.audits))
	for _, a := range f.audits {
		actions = append(actions, a.Action)
	}
	return actions
}

func countAction(actions []string, action string) int {
	n := 0
	for _, a := range actions {
		if a == action {
			n++
		}
	}
	return n
}

type fakeEvents struct{ f *fakeStore }

func (r *fakeEvents) FindEvent(_ context.Context, id string) (*models.Event, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	e, ok := r.f.events[id]
	if !ok {
		return nil, fmt.Errorf("FindEvent: no rows")
	}
	cp := *e
	return &cp, nil
}

func (r *fakeEvents) FindCategory(_ context.Context, id string) (*models.TicketCategory, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	c, ok := r.f.categories[id]
	if !ok {
		return nil, fmt.Errorf("FindCategory: no rows")
	}
	cp := *c
	return &cp, nil
}

func (r *fakeEvents) CategoriesByEvent(_ context.Context, eventID string) ([]models.TicketCategory, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []models.TicketCategory
	for _, c := range r.f.categories {
		if c.EventID == eventID {
			out = append(out, *c)
		}
	}
	return out, nil
}

type fakeOrders struct{ f *fakeStore }

func (r *fakeOrders) Create(_ context.Context, o *models.Order) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	o.ID = r.f.id("ord")
	o.Created = time.Now()
	cp := *o
	r.f.orders[o.ID] = &cp
	return nil
}

func (r *fakeOrders) FindByID(_ context.Context, id string) (*models.Order, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	o, ok := r.f.orders[id]
	if !ok {
		return nil, status.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrders) FindByCheckoutID(_ context.Context, checkoutID string) (*models.Order, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, o := range r.f.orders {
		if o.CheckoutRequestID == checkoutID && checkoutID != "" {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeOrders) SetCheckoutIDs(_ context.Context, orderID, checkoutID, merchantID string) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	o, ok := r.f.orders[orderID]
	if !ok {
		return status.ErrOrderNotFound
	}
	o.CheckoutRequestID = checkoutID
	o.MerchantRequestID = merchantID
	return nil
}

func (r *fakeOrders) MarkPaid(_ context.Context, orderID, receipt string, paidAt time.Time) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	o, ok := r.f.orders[orderID]
	if !ok || o.Status != models.OrderPending {
		return false, nil
	}
	r.pay(o, receipt, paidAt)
	return true, nil
}

func (r *fakeOrders) MarkPaidAfterTimeout(_ context.Context, orderID, receipt string, paidAt time.Time) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	o, ok := r.f.orders[orderID]
	if !ok || o.Status != models.OrderFailed || o.FailureReason != models.FailedByTimeout {
		return false, nil
	}
	r.pay(o, receipt, paidAt)
	return true, nil
}

func (r *fakeOrders) pay(o *models.Order, receipt string, paidAt time.Time) {
	o.Status = models.OrderPaid
	o.MpesaReceipt = receipt
	o.FailureReason = ""
	at := paidAt
	o.PaidAt = &at
}

func (r *fakeOrders) MarkFailed(_ context.Context, orderID string, reason models.FailureReason) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	o, ok := r.f.orders[orderID]
	if !ok || o.Status != models.OrderPending {
		return false, nil
	}
	o.Status = models.OrderFailed
	o.FailureReason = reason
	return true, nil
}

type fakeTickets struct{ f *fakeStore }

func (r *fakeTickets) CountSoldByCategory(_ context.Context, categoryID string) (int, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	n := 0
	for _, t := range r.f.tickets {
		if t.TicketCategoryID != categoryID {
			continue
		}
		if o, ok := r.f.orders[t.OrderID]; ok && o.Status == models.OrderFailed {
			continue
		}
		n++
	}
	return n, nil
}

func (r *fakeTickets) ExistsForOrder(_ context.Context, orderID string) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, t := range r.f.tickets {
		if t.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeTickets) ByOrder(_ context.Context, orderID string) ([]models.Ticket, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []models.Ticket
	for _, t := range r.f.tickets {
		if t.OrderID == orderID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTickets) CodeExists(_ context.Context, code string) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, t := range r.f.tickets {
		if t.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeTickets) Insert(_ context.Context, t *models.Ticket) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	t.ID = r.f.id("tkt")
	t.Created = time.Now()
	r.f.tickets = append(r.f.tickets, *t)
	return nil
}

func (r *fakeTickets) Consume(_ context.Context, code string, at time.Time) (*models.Ticket, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for i := range r.f.tickets {
		t := &r.f.tickets[i]
		if t.Code != code {
			continue
		}
		if t.Used {
			return nil, status.ErrTicketAlreadyUsed
		}
		t.Used = true
		usedAt := at
		t.UsedAt = &usedAt
		cp := *t
		return &cp, nil
	}
	return nil, status.ErrTicketNotFound
}

type fakeAffiliates struct{ f *fakeStore }

func (r *fakeAffiliates) FindByCode(_ context.Context, referralCode string) (*models.Affiliate, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, a := range r.f.affiliates {
		if a.ReferralCode == referralCode {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeAffiliates) FindByID(_ context.Context, id string) (*models.Affiliate, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	a, ok := r.f.affiliates[id]
	if !ok {
		return nil, fmt.Errorf("FindByID: no rows")
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAffiliates) SaleExists(_ context.Context, orderID string) (bool, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, s := range r.f.sales {
		if s.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeAffiliates) CreateSale(_ context.Context, s *models.AffiliateSale) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	s.ID = r.f.id("sal")
	s.Created = time.Now()
	r.f.sales = append(r.f.sales, *s)
	return nil
}

func (r *fakeAffiliates) SalesByAffiliate(_ context.Context, affiliateID string) ([]models.AffiliateSale, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	var out []models.AffiliateSale
	for _, s := range r.f.sales {
		if s.AffiliateID == affiliateID {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeAudit struct{ f *fakeStore }

func (r *fakeAudit) Append(_ context.Context, e *models.AuditEntry) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	e.ID = r.f.id("aud")
	e.Created = time.Now()
	r.f.audits = append(r.f.audits, *e)
	return nil
}

// fakeGateway scripts the push outcome per test.
type fakeGateway struct {
	mu     sync.Mutex
	pushes []payment.PushRequest
	result *payment.PushResult
	err    error
}

func (g *fakeGateway) InitiatePush(_ context.Context, req *payment.PushRequest) (*payment.PushResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pushes = append(g.pushes, *req)
	if g.err != nil {
		return nil, g.err
	}
	if g.result != nil {
		return g.result, nil
	}
	return &payment.PushResult{
		CheckoutRequestID: fmt.Sprintf("ws_CO_%d", len(g.pushes)),
		MerchantRequestID: fmt.Sprintf("mr_%d", len(g.pushes)),
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

// fakeDispatcher records jobs instead of queueing them.
type fakeDispatcher struct {
	mu   sync.Mutex
	jobs []DeliveryJob
	err  error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, job *DeliveryJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, *job)
	return nil
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.jobs)
}
