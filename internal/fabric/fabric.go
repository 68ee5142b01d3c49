package fabric

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/microsoft/go-mssqldb/azuread"
	"go.uber.org/zap"
)

// ErrMissingConfig reports that connection settings are incomplete. Callers
// classify it separately from open/auth failures.
var ErrMissingConfig = errors.New("fabric: missing connection settings")

// Config holds the service-principal credentials and endpoint for one Fabric
// SQL database. The same shape serves both the runtime database and the
// lakehouse endpoint.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Server       string
	Database     string
}

// Validate reports the missing keys, if any.
func (c Config) Validate() error {
	var missing []string
	if c.TenantID == "" {
		missing = append(missing, "tenant_id")
	}
	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if c.Server == "" {
		missing = append(missing, "server")
	}
	if c.Database == "" {
		missing = append(missing, "database")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

func (c Config) connectionString() string {
	query := url.Values{}
	query.Set("database", c.Database)
	query.Set("encrypt", "true")
	query.Set("TrustServerCertificate", "false")
	query.Set("dial timeout", "30")
	query.Set("fedauth", azuread.ActiveDirectoryServicePrincipal)

	u := url.URL{
		Scheme:   "sqlserver",
		Host:     c.Server,
		User:     url.UserPassword(fmt.Sprintf("%s@%s", c.ClientID, c.TenantID), c.ClientSecret),
		RawQuery: query.Encode(),
	}
	return u.String()
}

// Connector opens connections to one Fabric SQL database. A fresh *sql.DB is
// opened per operation and must be closed by the caller on every path; no
// pooling happens at this layer.
type Connector struct {
	config Config
	logger *zap.Logger
}

func NewConnector(config Config, logger *zap.Logger) *Connector {
	return &Connector{config: config, logger: logger}
}

// Open validates the settings, opens a connection and verifies it with a
// ping. Token acquisition against the directory service happens inside the
// azuread driver during the ping.
func (c *Connector) Open(ctx context.Context) (*sql.DB, error) {
	if err := c.config.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(azuread.DriverName, c.config.connectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open connection to %s: %w", c.config.Server, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		c.logger.Error("Failed to connect to Fabric SQL endpoint",
			zap.Error(err),
			zap.String("server", c.config.Server),
			zap.String("database", c.config.Database))
		return nil, fmt.Errorf("failed to connect to %s: %w", c.config.Server, err)
	}

	return db, nil
}
