package vsphere

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/performance"
	"github.com/vmware/govmomi/session"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/soap"
	"github.com/vmware/govmomi/vim25/types"
	"go.uber.org/zap"

	"github.com/aaronlmathis/vsflux/internal/pipeline"
	"github.com/aaronlmathis/vsflux/internal/version"
)

// RealtimeInterval is the performance interval id of realtime statistics
const RealtimeInterval int32 = 20

// Config holds vCenter connection settings
type Config struct {
	URL        string
	Username   string
	Password   string
	Insecure   bool
	Datacenter string
	IntervalID int32
}

// Connector opens authenticated vCenter sessions
type Connector struct {
	logger *zap.Logger
	config Config
}

// NewConnector creates a connector. Credentials in the URL userinfo are used
// when Username is empty.
func NewConnector(logger *zap.Logger, config Config) *Connector {
	if config.IntervalID == 0 {
		config.IntervalID = RealtimeInterval
	}
	return &Connector{logger: logger, config: config}
}

// Connect logs in and returns a session scoped to one collection run
func (c *Connector) Connect(ctx context.Context) (pipeline.Session, error) {
	u, err := soap.ParseURL(c.config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse vCenter URL: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("vCenter URL is empty")
	}
	if c.config.Username != "" {
		u.User = url.UserPassword(c.config.Username, c.config.Password)
	}

	soapClient := soap.NewClient(u, c.config.Insecure)
	soapClient.UserAgent = version.UserAgent()

	vimClient, err := vim25.NewClient(ctx, soapClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create vim25 client for %s: %w", u.Host, err)
	}

	manager := session.NewManager(vimClient)
	if err := manager.Login(ctx, u.User); err != nil {
		return nil, fmt.Errorf("failed to log in to %s: %w", u.Host, err)
	}

	s := &Session{
		logger:     c.logger.With(zap.String("vcenter", u.Host)),
		client:     vimClient,
		manager:    manager,
		perf:       performance.NewManager(vimClient),
		intervalID: c.config.IntervalID,
		refs:       make(map[string]types.ManagedObjectReference),
	}

	s.root = vimClient.ServiceContent.RootFolder
	if c.config.Datacenter != "" {
		dc, err := find.NewFinder(vimClient, false).Datacenter(ctx, c.config.Datacenter)
		if err != nil {
			_ = manager.Logout(context.Background())
			return nil, fmt.Errorf("failed to find datacenter %q: %w", c.config.Datacenter, err)
		}
		s.root = dc.Reference()
	}

	s.logger.Debug("Logged in to vCenter",
		zap.String("apiVersion", vimClient.ServiceContent.About.ApiVersion))

	return s, nil
}

// Session is one logged-in vCenter session. Samples is safe for concurrent use.
type Session struct {
	logger     *zap.Logger
	client     *vim25.Client
	manager    *session.Manager
	perf       *performance.Manager
	root       types.ManagedObjectReference
	intervalID int32

	mu   sync.RWMutex
	refs map[string]types.ManagedObjectReference
}

// Close logs out of vCenter
func (s *Session) Close(ctx context.Context) error {
	if err := s.manager.Logout(ctx); err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	s.logger.Debug("Logged out of vCenter")
	return nil
}

func (s *Session) remember(ref types.ManagedObjectReference) string {
	key := ref.String()
	s.mu.Lock()
	s.refs[key] = ref
	s.mu.Unlock()
	return key
}

func (s *Session) lookup(key string) (types.ManagedObjectReference, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.refs[key]
	return ref, ok
}
