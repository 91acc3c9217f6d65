package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AnshRaj112/connectpro-relay/internal/models"
	"github.com/AnshRaj112/connectpro-relay/internal/transport"
)

// fakeSender records every outbound message keyed by chat id.
type fakeSender struct {
	mu        sync.Mutex
	sent      map[int64][]sentMsg
	documents map[int64][]sentDoc
	fail      map[int64]bool // chats whose deliveries fail
}

type sentMsg struct {
	text string
	opts *transport.SendOpts
}

type sentDoc struct {
	filename string
	data     []byte
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		sent:      make(map[int64][]sentMsg),
		documents: make(map[int64][]sentDoc),
		fail:      make(map[int64]bool),
	}
}

func (f *fakeSender) SendText(_ context.Context, chatID int64, text string, opts *transport.SendOpts) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[chatID] {
		return &transport.DeliveryError{ChatID: chatID, Err: errors.New("blocked")}
	}
	f.sent[chatID] = append(f.sent[chatID], sentMsg{text: text, opts: opts})
	return nil
}

func (f *fakeSender) SendDocument(_ context.Context, chatID int64, data []byte, filename, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[chatID] {
		return &transport.DeliveryError{ChatID: chatID, Err: errors.New("blocked")}
	}
	f.documents[chatID] = append(f.documents[chatID], sentDoc{filename: filename, data: data})
	return nil
}

func (f *fakeSender) messages(chatID int64) []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMsg, len(f.sent[chatID]))
	copy(out, f.sent[chatID])
	return out
}

func (f *fakeSender) lastText(chatID int64) string {
	msgs := f.messages(chatID)
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].text
}

// fakeDirectory is an in-memory OwnerDirectory with the same uniqueness
// guarantee the database enforces.
type fakeDirectory struct {
	mu     sync.Mutex
	owners map[int64]*models.Owner
	nextID int64
	err    error // forced error for every call when set
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{owners: make(map[int64]*models.Owner), nextID: 1}
}

func (d *fakeDirectory) put(o *models.Owner) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if o.ID == 0 {
		o.ID = d.nextID
		d.nextID++
	}
	d.owners[o.Identity] = o
}

func (d *fakeDirectory) LookupByIdentity(_ context.Context, identity int64) (*models.Owner, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	o, ok := d.owners[identity]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (d *fakeDirectory) Create(_ context.Context, identity int64, profile ProfileSnapshot, plan models.Plan, trialDays int) (*models.Owner, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	if _, ok := d.owners[identity]; ok {
		return nil, ErrDuplicateOwner
	}
	o := &models.Owner{
		ID:        d.nextID,
		Identity:  identity,
		Name:      profile.Name,
		Category:  profile.Category,
		Bio:       profile.Bio,
		LogoRef:   profile.LogoRef,
		Plan:      plan,
		RelayMode: models.RelayModeShared,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if plan == models.PlanTrial {
		t := time.Now().AddDate(0, 0, trialDays)
		o.TrialEnds = &t
	}
	d.nextID++
	d.owners[identity] = o
	cp := *o
	return &cp, nil
}

func (d *fakeDirectory) UpgradePlan(_ context.Context, identity int64, plan models.Plan, paymentRef string, extensionDays int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.owners[identity]
	if !ok {
		return ErrOwnerNotFound
	}
	if o.LastPaymentRef == paymentRef {
		return nil
	}
	o.Plan = plan
	o.LastPaymentRef = paymentRef
	base := time.Now()
	if o.SubscriptionExpires != nil && o.SubscriptionExpires.After(base) {
		base = *o.SubscriptionExpires
	}
	t := base.AddDate(0, 0, extensionDays)
	o.SubscriptionExpires = &t
	o.TrialEnds = nil
	o.Active = true
	return nil
}

func (d *fakeDirectory) SetActive(_ context.Context, ownerID int64, active bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, o := range d.owners {
		if o.ID == ownerID {
			o.Active = active
			return nil
		}
	}
	return ErrOwnerNotFound
}

func (d *fakeDirectory) SwitchToDedicated(_ context.Context, identity int64, encryptedToken string, trialDays int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.owners[identity]
	if !ok {
		return ErrOwnerNotFound
	}
	o.RelayMode = models.RelayModeDedicated
	o.RelayTokenEnc = encryptedToken
	o.Plan = models.PlanTrial
	t := time.Now().AddDate(0, 0, trialDays)
	o.TrialEnds = &t
	return nil
}

func (d *fakeDirectory) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.owners)
}

// fakeUserStore records Touch calls.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[int64]*models.EndUser
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[int64]*models.EndUser)}
}

func (s *fakeUserStore) Touch(_ context.Context, identity int64, firstName, lastName, handle string) (*models.EndUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[identity]
	if !ok {
		u = &models.EndUser{ID: int64(len(s.users) + 1), Identity: identity, CreatedAt: time.Now()}
		s.users[identity] = u
	}
	u.FirstName = firstName
	u.LastName = lastName
	u.Handle = handle
	cp := *u
	return &cp, nil
}

// fakeMessageLog is an append-only in-memory MessageLog.
type fakeMessageLog struct {
	mu      sync.Mutex
	records []models.MessageRecord
	failAll bool
}

func (l *fakeMessageLog) Append(_ context.Context, rec *models.MessageRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAll {
		return errors.New("storage down")
	}
	l.records = append(l.records, *rec)
	return nil
}

func (l *fakeMessageLog) ForOwner(_ context.Context, ownerID int64) ([]models.MessageRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.MessageRecord
	for _, rec := range l.records {
		if rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (l *fakeMessageLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// fakePendingPayments stores at most one record per identity.
type fakePendingPayments struct {
	mu      sync.Mutex
	pending map[int64]*models.PendingPayment
}

func newFakePendingPayments() *fakePendingPayments {
	return &fakePendingPayments{pending: make(map[int64]*models.PendingPayment)}
}

func (p *fakePendingPayments) Save(_ context.Context, rec *models.PendingPayment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := *rec
	p.pending[rec.Identity] = &cp
	return nil
}

func (p *fakePendingPayments) Take(_ context.Context, identity int64, maxAge time.Duration) (*models.PendingPayment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.pending[identity]
	if !ok {
		return nil, nil
	}
	delete(p.pending, identity)
	if time.Since(rec.CreatedAt) > maxAge {
		return nil, nil
	}
	return rec, nil
}

type fakeLinker struct{}

func (fakeLinker) GenerateLink(identity int64, plan models.Plan) string {
	return "https://pay.test/checkout"
}

type fakeStats struct {
	stats Stats
	err   error
}

func (f *fakeStats) Stats(_ context.Context) (Stats, error) {
	return f.stats, f.err
}
