package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nordiq/mailroom/internal/models"
	"github.com/nordiq/mailroom/services/sync-service/internal/health"
	"github.com/nordiq/mailroom/services/sync-service/internal/provider"
)

// CredentialSource reads tenant credentials. Implemented by the pgx
// credential store.
type CredentialSource interface {
	FindActiveByAction(ctx context.Context, action models.RoutingAction) ([]models.Credential, error)
	FindAllAppCredentials(ctx context.Context) ([]models.AppCredential, error)
}

// SecretDecrypter opens encrypted credential secrets just-in-time.
type SecretDecrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// Job is a named unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context)
}

// ExchangeJob polls every active session credential through the IMAP
// provider, one fresh provider session per credential per run.
type ExchangeJob struct {
	runner      *Runner
	credentials CredentialSource
	secrets     SecretDecrypter
	health      health.Reporter
	log         *slog.Logger

	// newProvider builds a provider session from just-decrypted
	// secrets; a seam for tests.
	newProvider func(endpoint, username, password string) provider.Provider
}

// NewExchangeJob creates the session-credential synchronization job.
func NewExchangeJob(
	runner *Runner,
	credentials CredentialSource,
	secrets SecretDecrypter,
	reporter health.Reporter,
	log *slog.Logger,
	newProvider func(endpoint, username, password string) provider.Provider,
) *ExchangeJob {
	return &ExchangeJob{
		runner:      runner,
		credentials: credentials,
		secrets:     secrets,
		health:      reporter,
		log:         log,
		newProvider: newProvider,
	}
}

// Name implements Job.
func (j *ExchangeJob) Name() string { return "exchange-sync" }

// Run implements Job. A failing credential listing is treated as zero
// credentials for this run and reported unhealthy; a credential whose
// secret cannot be opened is skipped without blocking the others.
func (j *ExchangeJob) Run(ctx context.Context) {
	var targets []Target

	for _, action := range []models.RoutingAction{models.ActionPersist, models.ActionSendSMS} {
		creds, err := j.credentials.FindActiveByAction(ctx, action)
		if err != nil {
			j.log.Error("listing credentials failed",
				slog.String("job", j.Name()),
				slog.String("action", string(action)),
				slog.String("error", err.Error()),
			)
			j.health.ReportUnhealthy(j.Name(), fmt.Sprintf("failed to list credentials: %v", err))
			continue
		}

		for _, cred := range creds {
			password, err := j.secrets.Decrypt(cred.PasswordEnc)
			if err != nil {
				j.log.Error("decrypting credential secret failed",
					slog.String("job", j.Name()),
					slog.String("tenant_id", cred.TenantID.String()),
					slog.String("error", err.Error()),
				)
				j.health.ReportUnhealthy(j.Name(), fmt.Sprintf("failed to decrypt secret of tenant %s: %v", cred.TenantID, err))
				continue
			}

			targets = append(targets, Target{
				TenantID:          cred.TenantID,
				Namespace:         cred.Namespace,
				Mailboxes:         cred.Mailboxes,
				DestinationFolder: cred.DestinationFolder,
				Action:            cred.Action,
				Metadata:          cred.Metadata,
				Provider:          j.newProvider(cred.Endpoint, cred.Username, password),
			})
		}
	}

	j.runner.Run(ctx, j.Name(), targets)
}

// GraphJob polls every enabled application credential through the
// Graph provider. All Graph tenants are polled each run; their messages
// are always persisted.
type GraphJob struct {
	runner      *Runner
	credentials CredentialSource
	secrets     SecretDecrypter
	health      health.Reporter
	log         *slog.Logger

	newProvider func(clientID, clientSecret, directoryID string) provider.Provider
}

// NewGraphJob creates the application-credential synchronization job.
func NewGraphJob(
	runner *Runner,
	credentials CredentialSource,
	secrets SecretDecrypter,
	reporter health.Reporter,
	log *slog.Logger,
	newProvider func(clientID, clientSecret, directoryID string) provider.Provider,
) *GraphJob {
	return &GraphJob{
		runner:      runner,
		credentials: credentials,
		secrets:     secrets,
		health:      reporter,
		log:         log,
		newProvider: newProvider,
	}
}

// Name implements Job.
func (j *GraphJob) Name() string { return "graph-sync" }

// Run implements Job.
func (j *GraphJob) Run(ctx context.Context) {
	creds, err := j.credentials.FindAllAppCredentials(ctx)
	if err != nil {
		j.log.Error("listing app credentials failed",
			slog.String("job", j.Name()),
			slog.String("error", err.Error()),
		)
		j.health.ReportUnhealthy(j.Name(), fmt.Sprintf("failed to list credentials: %v", err))
		return
	}

	var targets []Target
	for _, cred := range creds {
		clientID, clientSecret, directoryID, err := j.decryptSecrets(cred)
		if err != nil {
			j.log.Error("decrypting app credential failed",
				slog.String("job", j.Name()),
				slog.String("tenant_id", cred.TenantID.String()),
				slog.String("error", err.Error()),
			)
			j.health.ReportUnhealthy(j.Name(), fmt.Sprintf("failed to decrypt secrets of tenant %s: %v", cred.TenantID, err))
			continue
		}

		targets = append(targets, Target{
			TenantID:          cred.TenantID,
			Namespace:         cred.Namespace,
			Mailboxes:         cred.Mailboxes,
			DestinationFolder: cred.DestinationFolder,
			Action:            models.ActionPersist,
			Metadata:          cred.Metadata,
			Provider:          j.newProvider(clientID, clientSecret, directoryID),
		})
	}

	j.runner.Run(ctx, j.Name(), targets)
}

func (j *GraphJob) decryptSecrets(cred models.AppCredential) (clientID, clientSecret, directoryID string, err error) {
	if clientID, err = j.secrets.Decrypt(cred.ClientIDEnc); err != nil {
		return "", "", "", fmt.Errorf("client id: %w", err)
	}
	if clientSecret, err = j.secrets.Decrypt(cred.ClientSecretEnc); err != nil {
		return "", "", "", fmt.Errorf("client secret: %w", err)
	}
	if directoryID, err = j.secrets.Decrypt(cred.DirectoryIDEnc); err != nil {
		return "", "", "", fmt.Errorf("directory id: %w", err)
	}
	return clientID, clientSecret, directoryID, nil
}
