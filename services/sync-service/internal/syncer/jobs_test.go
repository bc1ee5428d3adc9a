package syncer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordiq/mailroom/internal/models"
	"github.com/nordiq/mailroom/services/sync-service/internal/health"
	"github.com/nordiq/mailroom/services/sync-service/internal/provider"
)

type fakeCredentialSource struct {
	byAction map[models.RoutingAction][]models.Credential
	appCreds []models.AppCredential
	err      error
}

func (s *fakeCredentialSource) FindActiveByAction(_ context.Context, action models.RoutingAction) ([]models.Credential, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byAction[action], nil
}

func (s *fakeCredentialSource) FindAllAppCredentials(_ context.Context) ([]models.AppCredential, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.appCreds, nil
}

// fakeDecrypter unwraps "enc:" prefixed secrets and fails on anything
// else.
type fakeDecrypter struct{}

func (fakeDecrypter) Decrypt(ciphertext string) (string, error) {
	plain, ok := strings.CutPrefix(ciphertext, "enc:")
	if !ok {
		return "", errors.New("malformed ciphertext")
	}
	return plain, nil
}

func sessionCredential(action models.RoutingAction, password string) models.Credential {
	return models.Credential{
		ID:                uuid.New(),
		TenantID:          uuid.New(),
		Namespace:         "acme",
		Username:          "svc@acme.test",
		PasswordEnc:       password,
		Endpoint:          "mail.acme.test:993",
		Mailboxes:         []string{"inbox@acme.test"},
		DestinationFolder: "Processed",
		Action:            action,
		Enabled:           true,
	}
}

func TestExchangeJobBuildsSessionPerCredential(t *testing.T) {
	source := &fakeCredentialSource{byAction: map[models.RoutingAction][]models.Credential{
		models.ActionPersist: {sessionCredential(models.ActionPersist, "enc:hunter2")},
		models.ActionSendSMS: {sessionCredential(models.ActionSendSMS, "enc:hunter3")},
	}}

	var passwords []string
	registry := health.NewRegistry()
	runner := NewRunner(&fakeMailStore{}, &fakeSMSSender{}, registry, testLogger())
	job := NewExchangeJob(runner, source, fakeDecrypter{}, registry, testLogger(),
		func(endpoint, username, password string) provider.Provider {
			passwords = append(passwords, password)
			return newFakeProvider()
		})

	job.Run(context.Background())

	assert.Equal(t, []string{"hunter2", "hunter3"}, passwords)
	assert.Empty(t, registry.Snapshot())
}

func TestExchangeJobSkipsUndecryptableCredential(t *testing.T) {
	source := &fakeCredentialSource{byAction: map[models.RoutingAction][]models.Credential{
		models.ActionPersist: {
			sessionCredential(models.ActionPersist, "corrupted"),
			sessionCredential(models.ActionPersist, "enc:hunter2"),
		},
	}}

	sessions := 0
	registry := health.NewRegistry()
	runner := NewRunner(&fakeMailStore{}, &fakeSMSSender{}, registry, testLogger())
	job := NewExchangeJob(runner, source, fakeDecrypter{}, registry, testLogger(),
		func(_, _, _ string) provider.Provider {
			sessions++
			return newFakeProvider()
		})

	job.Run(context.Background())

	assert.Equal(t, 1, sessions)
	assert.Len(t, registry.Snapshot(), 1)
}

func TestExchangeJobReportsListingFailure(t *testing.T) {
	source := &fakeCredentialSource{err: errors.New("database gone")}

	registry := health.NewRegistry()
	runner := NewRunner(&fakeMailStore{}, &fakeSMSSender{}, registry, testLogger())
	job := NewExchangeJob(runner, source, fakeDecrypter{}, registry, testLogger(),
		func(_, _, _ string) provider.Provider {
			t.Fatal("no session expected")
			return nil
		})

	job.Run(context.Background())

	assert.Len(t, registry.Snapshot(), 1)
}

func TestGraphJobAlwaysPersists(t *testing.T) {
	source := &fakeCredentialSource{appCreds: []models.AppCredential{{
		ID:                uuid.New(),
		TenantID:          uuid.New(),
		Namespace:         "acme",
		ClientIDEnc:       "enc:client",
		ClientSecretEnc:   "enc:secret",
		DirectoryIDEnc:    "enc:directory",
		Mailboxes:         []string{"shared@acme.test"},
		DestinationFolder: "Processed",
		Enabled:           true,
	}}}

	p := newFakeProvider()
	p.iters["shared@acme.test"] = &fakeIter{msgs: []*provider.Message{
		{ID: "1", Mailbox: "shared@acme.test", Subject: "hello"},
	}}

	mail := &fakeMailStore{}
	sms := &fakeSMSSender{}
	registry := health.NewRegistry()
	runner := NewRunner(mail, sms, registry, testLogger())
	job := NewGraphJob(runner, source, fakeDecrypter{}, registry, testLogger(),
		func(clientID, clientSecret, directoryID string) provider.Provider {
			assert.Equal(t, "client", clientID)
			assert.Equal(t, "secret", clientSecret)
			assert.Equal(t, "directory", directoryID)
			return p
		})

	job.Run(context.Background())

	require.Len(t, mail.inserted, 1)
	assert.Empty(t, sms.sent)
	assert.Equal(t, []string{"1"}, p.moved)
}

func TestGraphJobSkipsUndecryptableCredential(t *testing.T) {
	source := &fakeCredentialSource{appCreds: []models.AppCredential{{
		ID:              uuid.New(),
		TenantID:        uuid.New(),
		ClientIDEnc:     "enc:client",
		ClientSecretEnc: "corrupted",
		DirectoryIDEnc:  "enc:directory",
		Mailboxes:       []string{"shared@acme.test"},
	}}}

	registry := health.NewRegistry()
	runner := NewRunner(&fakeMailStore{}, &fakeSMSSender{}, registry, testLogger())
	job := NewGraphJob(runner, source, fakeDecrypter{}, registry, testLogger(),
		func(_, _, _ string) provider.Provider {
			t.Fatal("no session expected")
			return nil
		})

	job.Run(context.Background())

	assert.Len(t, registry.Snapshot(), 1)
}
