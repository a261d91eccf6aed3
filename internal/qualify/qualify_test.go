package qualify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxzi/campaigner/internal/intake"
	"github.com/foxzi/campaigner/internal/models"
	"github.com/foxzi/campaigner/internal/qualify"
	"github.com/foxzi/campaigner/internal/store"
)

type memStore struct {
	contacts  map[string]*models.Contact
	customers map[string]string // email -> domain
	err       error
}

func newMemStore() *memStore {
	return &memStore{
		contacts:  make(map[string]*models.Contact),
		customers: make(map[string]string),
	}
}

func (m *memStore) GetContact(_ context.Context, email string) (*models.Contact, error) {
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.contacts[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c, nil
}

func (m *memStore) ContactsByDomain(_ context.Context, domain string) ([]*models.Contact, error) {
	var out []*models.Contact
	for _, c := range m.contacts {
		if c.Domain == domain && c.Active {
			out = append(out, c)
		}
	}
	return out, m.err
}

func (m *memStore) IsCustomer(_ context.Context, email, domain string) (bool, error) {
	if _, ok := m.customers[email]; ok {
		return true, m.err
	}
	for _, d := range m.customers {
		if d == domain {
			return true, m.err
		}
	}
	return false, m.err
}

func (m *memStore) HasCustomerDomain(_ context.Context, domain string) (bool, error) {
	for _, d := range m.customers {
		if d == domain {
			return true, m.err
		}
	}
	return false, m.err
}

func candidate(addr string) *intake.Candidate {
	return &intake.Candidate{Info: intake.BusinessInfo{Email: addr, FirstName: "Pat"}}
}

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func run(st *memStore) *qualify.RunContext {
	return qualify.NewRunContext(qualify.NewProviderSet([]string{"gmail.com"}), st, now)
}

func TestQualifyRejections(t *testing.T) {
	st := newMemStore()
	st.customers["boss@client.com"] = "client.com"
	recent := now.Add(-5 * 24 * time.Hour)
	st.contacts["recent@recent.com"] = &models.Contact{Email: "recent@recent.com", Domain: "recent.com", Active: true, LastEmailSent: &recent}
	st.contacts["owner@taken.com"] = &models.Contact{Email: "owner@taken.com", Domain: "taken.com", Active: true}

	q := qualify.New(qualify.Policy{Cooldown: 14 * 24 * time.Hour})

	tests := []struct {
		name  string
		email string
		want  qualify.Reason
	}{
		{"missing", "", qualify.ReasonMissingEmail},
		{"whitespace only", "   ", qualify.ReasonMissingEmail},
		{"bad syntax", "not-an-email", qualify.ReasonInvalidEmail},
		{"customer email", "boss@client.com", qualify.ReasonExistingCustomer},
		{"customer domain", "intern@client.com", qualify.ReasonExistingCustomer},
		{"recently contacted", "recent@recent.com", qualify.ReasonRecentlyContacted},
		{"domain taken in store", "other@taken.com", qualify.ReasonBusinessDomainConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, reason, err := q.Qualify(context.Background(), run(st), candidate(tt.email))
			require.NoError(t, err)
			assert.Nil(t, d)
			assert.Equal(t, tt.want, reason)
		})
	}
}

func TestQualifyInvalidDomain(t *testing.T) {
	// Passes the address pattern but not the stricter domain shape
	q := qualify.New(qualify.Policy{})
	_, reason, err := q.Qualify(context.Background(), run(newMemStore()), candidate("a@exa_mple.com"))
	require.NoError(t, err)
	assert.Equal(t, qualify.ReasonInvalidEmail, reason)

	_, reason, err = q.Qualify(context.Background(), run(newMemStore()), candidate("a@x..com"))
	require.NoError(t, err)
	assert.Equal(t, qualify.ReasonInvalidDomain, reason)
}

func TestQualifyAcceptsNewContact(t *testing.T) {
	q := qualify.New(qualify.Policy{})
	cand := candidate("  Jane@Acme.COM ")
	cand.URL = "https://acme.com"

	d, reason, err := q.Qualify(context.Background(), run(newMemStore()), cand)
	require.NoError(t, err)
	require.Empty(t, reason)
	require.NotNil(t, d)

	assert.True(t, d.NewToMaster)
	assert.Nil(t, d.RegisterCustomer)
	assert.Equal(t, "jane@acme.com", d.Contact.Email)
	assert.Equal(t, "acme.com", d.Contact.Domain)
	assert.False(t, d.Contact.IsProviderDomain)
	assert.True(t, d.Contact.Active)
	assert.Equal(t, now, d.Contact.AddedDate)
	assert.Equal(t, "https://acme.com", d.Contact.URL)
}

func TestQualifyExistingContactIsAdmitted(t *testing.T) {
	st := newMemStore()
	old := now.Add(-30 * 24 * time.Hour)
	st.contacts["jane@acme.com"] = &models.Contact{Email: "jane@acme.com", Domain: "acme.com", Active: true, LastEmailSent: &old, BusinessName: "Acme"}

	q := qualify.New(qualify.Policy{Cooldown: 14 * 24 * time.Hour})
	d, reason, err := q.Qualify(context.Background(), run(st), candidate("jane@acme.com"))
	require.NoError(t, err)
	require.Empty(t, reason)

	assert.False(t, d.NewToMaster)
	assert.Equal(t, "Acme", d.Contact.BusinessName)
	assert.Equal(t, "Pat", d.Contact.FirstName)
	assert.Equal(t, &old, d.Contact.LastEmailSent)
}

func TestQualifyCooldownDisabled(t *testing.T) {
	st := newMemStore()
	recent := now.Add(-time.Hour)
	st.contacts["jane@acme.com"] = &models.Contact{Email: "jane@acme.com", Domain: "acme.com", Active: true, LastEmailSent: &recent}

	q := qualify.New(qualify.Policy{})
	d, reason, err := q.Qualify(context.Background(), run(st), candidate("jane@acme.com"))
	require.NoError(t, err)
	assert.Empty(t, reason)
	assert.NotNil(t, d)
}

func TestQualifyRunLocalState(t *testing.T) {
	q := qualify.New(qualify.Policy{})
	rc := run(newMemStore())
	ctx := context.Background()

	admit := func(addr string) (*qualify.Decision, qualify.Reason) {
		d, reason, err := q.Qualify(ctx, rc, candidate(addr))
		require.NoError(t, err)
		if d != nil {
			rc.Admit(d.Contact)
		}
		return d, reason
	}

	_, reason := admit("a@acme.com")
	assert.Empty(t, reason)

	_, reason = admit("A@ACME.com")
	assert.Equal(t, qualify.ReasonCampaignDuplicate, reason)

	_, reason = admit("b@acme.com")
	assert.Equal(t, qualify.ReasonBusinessDomainConflict, reason)

	// Provider domains host unrelated people
	_, reason = admit("x@gmail.com")
	assert.Empty(t, reason)
	d, reason := admit("y@gmail.com")
	assert.Empty(t, reason)
	assert.True(t, d.Contact.IsProviderDomain)
}

func TestQualifyDomainOnly(t *testing.T) {
	st := newMemStore()
	st.customers["boss@client.com"] = "client.com"
	st.contacts["x@gmail.com"] = &models.Contact{Email: "x@gmail.com", Domain: "gmail.com", Active: true}

	q := qualify.New(qualify.Policy{CustomerExclusion: qualify.ExcludeDomainOnly})
	ctx := context.Background()

	_, reason, err := q.Qualify(ctx, run(st), candidate("intern@client.com"))
	require.NoError(t, err)
	assert.Equal(t, qualify.ReasonBusinessDomainConflict, reason)

	// Provider domains stay exempt
	d, reason, err := q.Qualify(ctx, run(st), candidate("y@gmail.com"))
	require.NoError(t, err)
	assert.Empty(t, reason)
	require.NotNil(t, d)
	assert.True(t, d.Contact.IsProviderDomain)

	rc := run(st)
	for _, addr := range []string{"p@gmail.com", "q@gmail.com"} {
		d, reason, err := q.Qualify(ctx, rc, candidate(addr))
		require.NoError(t, err)
		assert.Empty(t, reason, addr)
		rc.Admit(d.Contact)
	}

	d, reason, err = q.Qualify(ctx, run(st), candidate("new@fresh.com"))
	require.NoError(t, err)
	assert.Empty(t, reason)
	assert.NotNil(t, d)
}

func TestQualifyRegistersBusinessDomain(t *testing.T) {
	st := newMemStore()
	q := qualify.New(qualify.Policy{RegisterBusinessDomains: true})
	ctx := context.Background()

	d, _, err := q.Qualify(ctx, run(st), candidate("jane@acme.com"))
	require.NoError(t, err)
	require.NotNil(t, d.RegisterCustomer)
	assert.Equal(t, "acme.com", d.RegisterCustomer.Domain)
	assert.Equal(t, "qualification", d.RegisterCustomer.Source)

	d, _, err = q.Qualify(ctx, run(st), candidate("joe@gmail.com"))
	require.NoError(t, err)
	assert.Nil(t, d.RegisterCustomer)
}

func TestQualifyStoreError(t *testing.T) {
	st := newMemStore()
	st.err = errors.New("connection reset")

	q := qualify.New(qualify.Policy{})
	_, _, err := q.Qualify(context.Background(), run(st), candidate("jane@acme.com"))
	assert.Error(t, err)
}

func TestProviderSet(t *testing.T) {
	p := qualify.NewProviderSet([]string{"gmail.com", "yahoo.com"})
	assert.True(t, p.IsProvider("gmail.com"))
	assert.False(t, p.IsProvider("acme.com"))
	assert.False(t, p.IsProvider(""))
}
