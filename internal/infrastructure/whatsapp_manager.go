package infrastructure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"wacontacts/internal/interfaces"
)

// WhatsAppManager owns one WhatsAppClient per user, each with its own
// device database under baseDir.
type WhatsAppManager struct {
	clients map[int64]*WhatsAppClient
	mu      sync.RWMutex
	baseDir string
	limiter *LookupRateLimiter
	log     *zap.Logger

	// MessageHook receives every message tracked by any client.
	MessageHook func(client *WhatsAppClient, msg interfaces.MessageSnapshot)
}

func NewWhatsAppManager(baseDir string, logger *zap.Logger) *WhatsAppManager {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		logger.Warn("could not create devices directory", zap.String("dir", baseDir), zap.Error(err))
	}
	return &WhatsAppManager{
		clients: make(map[int64]*WhatsAppClient),
		baseDir: baseDir,
		limiter: NewLookupRateLimiter(2, 5),
		log:     logger,
	}
}

func (m *WhatsAppManager) devicePath(userID int64) string {
	return filepath.Join(m.baseDir, fmt.Sprintf("user_%d.db", userID))
}

// HasDevice reports whether a device database exists for the user.
func (m *WhatsAppManager) HasDevice(userID int64) bool {
	_, err := os.Stat(m.devicePath(userID))
	return err == nil
}

// GetClient returns nil when the user has no client.
func (m *WhatsAppManager) GetClient(userID int64) *WhatsAppClient {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clients[userID]
}

func (m *WhatsAppManager) GetOrCreateClient(ctx context.Context, userID int64) (*WhatsAppClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client, ok := m.clients[userID]; ok {
		return client, nil
	}
	client, err := NewWhatsAppClient(ctx, m.devicePath(userID), userID, m.log)
	if err != nil {
		return nil, fmt.Errorf("failed to create whatsapp client for user %d: %w", userID, err)
	}
	client.Limiter = m.limiter
	if m.MessageHook != nil {
		hook := m.MessageHook
		client.Tracker.OnMessage = func(msg interfaces.MessageSnapshot) { hook(client, msg) }
	}
	m.clients[userID] = client
	return client, nil
}

func (m *WhatsAppManager) ConnectClient(ctx context.Context, userID int64) (*WhatsAppClient, error) {
	client, err := m.GetOrCreateClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	if client.Client.IsConnected() {
		return client, nil
	}
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect whatsapp for user %d: %w", userID, err)
	}
	return client, nil
}

func (m *WhatsAppManager) DisconnectClient(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if client, ok := m.clients[userID]; ok {
		client.Disconnect()
		delete(m.clients, userID)
	}
	m.limiter.Prune(10 * time.Minute)
}

// LogoutClient unpairs the user's device. A missing or already logged
// out client is not an error.
func (m *WhatsAppManager) LogoutClient(ctx context.Context, userID int64) error {
	m.mu.RLock()
	client, ok := m.clients[userID]
	m.mu.RUnlock()
	if !ok || client == nil {
		return nil
	}

	var err error
	if client.IsLoggedIn() || client.Client.IsConnected() {
		err = client.Logout(ctx)
	}
	m.mu.Lock()
	delete(m.clients, userID)
	m.mu.Unlock()
	return err
}

func (m *WhatsAppManager) ConnectedUsers() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var users []int64
	for userID, client := range m.clients {
		if client.IsLoggedIn() {
			users = append(users, userID)
		}
	}
	return users
}

func (m *WhatsAppManager) DisconnectAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, client := range m.clients {
		client.Disconnect()
	}
	m.clients = make(map[int64]*WhatsAppClient)
}
