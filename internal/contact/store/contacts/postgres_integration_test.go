//go:build integration

package contacts_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"rollcall/internal/confidence"
	"rollcall/internal/contact/models"
	"rollcall/internal/contact/store/contacts"
	id "rollcall/pkg/domain"
	"rollcall/pkg/testutil/containers"
)

const schema = `
CREATE TABLE contacts (
	id                    uuid PRIMARY KEY,
	name                  text NOT NULL,
	emails                text[] NOT NULL DEFAULT '{}',
	source_system         text NOT NULL DEFAULT '',
	billing_line1         text NOT NULL DEFAULT '',
	billing_line2         text NOT NULL DEFAULT '',
	billing_city          text NOT NULL DEFAULT '',
	billing_region        text NOT NULL DEFAULT '',
	billing_postal_code   text NOT NULL DEFAULT '',
	billing_country       text NOT NULL DEFAULT '',
	shipping_line1        text NOT NULL DEFAULT '',
	shipping_line2        text NOT NULL DEFAULT '',
	shipping_city         text NOT NULL DEFAULT '',
	shipping_region       text NOT NULL DEFAULT '',
	shipping_postal_code  text NOT NULL DEFAULT '',
	shipping_country      text NOT NULL DEFAULT '',
	address_source        text NOT NULL DEFAULT 'billing',
	confidence            text NOT NULL DEFAULT 'very_low',
	billing_score         double precision NOT NULL DEFAULT 0,
	shipping_score        double precision NOT NULL DEFAULT 0,
	is_manual_override    boolean NOT NULL DEFAULT false,
	last_transaction_date timestamptz,
	created_at            timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE tags (
	id   uuid PRIMARY KEY,
	name text NOT NULL UNIQUE
);

CREATE TABLE contact_tags (
	contact_id uuid NOT NULL REFERENCES contacts(id),
	tag_id     uuid NOT NULL REFERENCES tags(id),
	PRIMARY KEY (contact_id, tag_id)
);

CREATE TABLE subscriptions (
	id         uuid PRIMARY KEY,
	contact_id uuid NOT NULL REFERENCES contacts(id)
);

CREATE TABLE transactions (
	id         uuid PRIMARY KEY,
	contact_id uuid NOT NULL REFERENCES contacts(id)
);

CREATE TABLE contact_products (
	id         uuid PRIMARY KEY,
	contact_id uuid NOT NULL REFERENCES contacts(id)
);
`

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *contacts.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	_, err := s.pg.DB.Exec(schema)
	s.Require().NoError(err)
	s.store = contacts.NewPostgres(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	for _, table := range []string{"contact_tags", "subscriptions", "transactions", "contact_products", "tags", "contacts"} {
		_, err := s.pg.DB.Exec(`DELETE FROM ` + table)
		s.Require().NoError(err)
	}
}

func (s *PostgresStoreSuite) insertContact(name string, score float64, lastTxn *time.Time) id.ContactID {
	contactID := id.ContactID(uuid.New())
	_, err := s.pg.DB.Exec(`
		INSERT INTO contacts (id, name, emails, billing_line1, billing_city, billing_postal_code,
		                      address_source, confidence, billing_score, last_transaction_date, created_at)
		VALUES ($1, $2, $3, '1 Main St', 'Dover', '03820', 'billing', $4, $5, $6, now())`,
		contactID.String(), name, "{"+uuid.NewString()+"@example.com}",
		string(confidence.Classify(score).Level), score, lastTxn,
	)
	s.Require().NoError(err)
	return contactID
}

func (s *PostgresStoreSuite) attachTag(contactID id.ContactID, tag string) {
	var tagID string
	err := s.pg.DB.QueryRow(`
		INSERT INTO tags (id, name) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, uuid.NewString(), tag,
	).Scan(&tagID)
	s.Require().NoError(err)
	_, err = s.pg.DB.Exec(
		`INSERT INTO contact_tags (contact_id, tag_id) VALUES ($1, $2)`,
		contactID.String(), tagID)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) countReferences(contactID id.ContactID) int {
	total := 0
	for _, table := range []string{"contact_tags", "subscriptions", "transactions", "contact_products"} {
		var n int
		err := s.pg.DB.QueryRow(
			`SELECT count(*) FROM `+table+` WHERE contact_id = $1`, contactID.String(),
		).Scan(&n)
		s.Require().NoError(err)
		total += n
	}
	return total
}

func (s *PostgresStoreSuite) TestMailingList_FilterAndOrder() {
	s.insertContact("Very High", 80, nil)
	s.insertContact("High", 65, nil)
	s.insertContact("Medium", 50, nil)
	s.insertContact("Low", 35, nil)
	s.insertContact("Very Low", 10, nil)

	result, err := s.store.MailingList(context.Background(),
		contacts.MailingListFilter{MinConfidence: confidence.Medium})

	s.Require().NoError(err)
	s.Require().Len(result, 3)
	s.Equal("Very High", result[0].Name)
	s.Equal("High", result[1].Name)
	s.Equal("Medium", result[2].Name)
}

func (s *PostgresStoreSuite) TestMailingList_SinceFilter() {
	recent := time.Now().Add(-10 * 24 * time.Hour)
	stale := time.Now().Add(-90 * 24 * time.Hour)
	wantID := s.insertContact("Recent", 80, &recent)
	s.insertContact("Stale", 80, &stale)
	s.insertContact("Never", 80, nil)

	since := time.Now().Add(-30 * 24 * time.Hour)
	result, err := s.store.MailingList(context.Background(),
		contacts.MailingListFilter{MinConfidence: confidence.High, Since: &since})

	s.Require().NoError(err)
	s.Require().Len(result, 1)
	s.Equal(wantID, result[0].ID)
}

func (s *PostgresStoreSuite) TestListDuplicateSets_GroupsAndOrders() {
	s.insertContact("Jane Doe", 50, nil)
	s.insertContact("jane  DOE", 50, nil)
	s.insertContact("Ann Smith", 50, nil)
	s.insertContact("ann smith", 50, nil)
	s.insertContact("ANN   SMITH", 50, nil)
	s.insertContact("Solo Contact", 50, nil)

	sets, err := s.store.ListDuplicateSets(context.Background())

	s.Require().NoError(err)
	s.Require().Len(sets, 2)
	s.Equal("ann smith", sets[0].NormalizedName)
	s.Equal(3, sets[0].ContactCount)
	s.Len(sets[0].ContactIDs, 3)
	s.Len(sets[0].Emails, 3)
	s.Equal("jane doe", sets[1].NormalizedName)
	s.Equal(2, sets[1].ContactCount)
}

func (s *PostgresStoreSuite) TestListDuplicateSets_EmailsCaseInsensitive() {
	insert := func(name, email string) {
		_, err := s.pg.DB.Exec(`
			INSERT INTO contacts (id, name, emails, address_source, confidence, billing_score)
			VALUES ($1, $2, $3, 'billing', 'medium', 50)`,
			uuid.NewString(), name, "{"+email+"}")
		s.Require().NoError(err)
	}
	insert("Jane Doe", "Jane@example.org")
	insert("jane doe", "jane@example.org")

	sets, err := s.store.ListDuplicateSets(context.Background())

	s.Require().NoError(err)
	s.Require().Len(sets, 1)
	s.Equal([]string{"jane@example.org"}, sets[0].Emails)
}

func (s *PostgresStoreSuite) TestMerge_RepointsAndDeletes() {
	survivor := s.insertContact("Jane Doe", 80, nil)
	dupA := s.insertContact("jane doe", 50, nil)
	dupB := s.insertContact("JANE DOE", 40, nil)

	s.attachTag(survivor, "vip")
	s.attachTag(dupA, "newsletter")
	_, err := s.pg.DB.Exec(
		`INSERT INTO subscriptions (id, contact_id) VALUES ($1, $2)`,
		uuid.NewString(), dupA.String())
	s.Require().NoError(err)
	_, err = s.pg.DB.Exec(
		`INSERT INTO transactions (id, contact_id) VALUES ($1, $2)`,
		uuid.NewString(), dupB.String())
	s.Require().NoError(err)
	_, err = s.pg.DB.Exec(
		`INSERT INTO contact_products (id, contact_id) VALUES ($1, $2)`,
		uuid.NewString(), dupB.String())
	s.Require().NoError(err)

	err = s.store.Merge(context.Background(), survivor, []id.ContactID{dupA, dupB})
	s.Require().NoError(err)

	s.Equal(0, s.countReferences(dupA), "no references to merged contacts may remain")
	s.Equal(0, s.countReferences(dupB))
	s.Equal(4, s.countReferences(survivor), "survivor owns the union")

	var remaining int
	err = s.pg.DB.QueryRow(`SELECT count(*) FROM contacts`).Scan(&remaining)
	s.Require().NoError(err)
	s.Equal(1, remaining)
}

func (s *PostgresStoreSuite) TestMerge_SharedTagDeduplicated() {
	survivor := s.insertContact("Jane Doe", 80, nil)
	dup := s.insertContact("jane doe", 50, nil)

	s.attachTag(survivor, "vip")
	var tagID string
	err := s.pg.DB.QueryRow(`SELECT id FROM tags WHERE name = 'vip'`).Scan(&tagID)
	s.Require().NoError(err)
	_, err = s.pg.DB.Exec(
		`INSERT INTO contact_tags (contact_id, tag_id) VALUES ($1, $2)`,
		dup.String(), tagID)
	s.Require().NoError(err)

	err = s.store.Merge(context.Background(), survivor, []id.ContactID{dup})
	s.Require().NoError(err)

	var count int
	err = s.pg.DB.QueryRow(
		`SELECT count(*) FROM contact_tags WHERE contact_id = $1 AND tag_id = $2`,
		survivor.String(), tagID,
	).Scan(&count)
	s.Require().NoError(err)
	s.Equal(1, count, "shared tag must appear exactly once post-merge")
}

func (s *PostgresStoreSuite) TestMerge_MissingParticipant() {
	survivor := s.insertContact("Jane Doe", 80, nil)

	err := s.store.Merge(context.Background(), survivor,
		[]id.ContactID{id.ContactID(uuid.New())})

	s.Error(err)
}
