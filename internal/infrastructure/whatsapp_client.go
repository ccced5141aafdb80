package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

var ErrNotPaired = errors.New("whatsapp device is not paired")

// WhatsAppClient is one user's whatsmeow session. It is the Session and
// Directory handed to the contact service.
type WhatsAppClient struct {
	Client  *whatsmeow.Client
	Tracker *EventTracker
	UserID  int64
	Limiter *LookupRateLimiter

	log    *zap.Logger
	qrCode string
	qrLock sync.RWMutex
}

func NewWhatsAppClient(ctx context.Context, dbPath string, userID int64, logger *zap.Logger) (*WhatsAppClient, error) {
	container, err := sqlstore.New(ctx, "sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)", NewWALogger(logger, "whatsmeow.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open device store: %w", err)
	}
	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	w := &WhatsAppClient{
		Client:  whatsmeow.NewClient(deviceStore, NewWALogger(logger, "whatsmeow.client")),
		Tracker: NewEventTracker(),
		UserID:  userID,
		log:     logger.With(zap.Int64("user_id", userID)),
	}
	w.Client.AddEventHandler(w.Tracker.Handle)
	return w, nil
}

// Connect starts the session. A device without a stored ID gets a QR
// channel whose codes are exposed through GetQR.
func (w *WhatsAppClient) Connect(ctx context.Context) error {
	if w.Client.Store.ID != nil {
		if err := w.Client.Connect(); err != nil {
			return err
		}
		w.log.Info("whatsapp connected with existing session")
		return nil
	}

	// The QR channel outlives the request that started pairing.
	qrChan, err := w.Client.GetQRChannel(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("qr channel: %w", err)
	}
	if err := w.Client.Connect(); err != nil {
		return err
	}
	go w.watchQR(qrChan)
	return nil
}

func (w *WhatsAppClient) watchQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		if evt.Event == "code" {
			w.qrLock.Lock()
			w.qrCode = evt.Code
			w.qrLock.Unlock()
			w.log.Debug("qr code refreshed")
			continue
		}
		w.log.Info("whatsapp login event", zap.String("event", evt.Event))
		if evt.Event == "success" {
			w.qrLock.Lock()
			w.qrCode = ""
			w.qrLock.Unlock()
		}
	}
}

func (w *WhatsAppClient) GetQR() string {
	w.qrLock.RLock()
	defer w.qrLock.RUnlock()
	return w.qrCode
}

func (w *WhatsAppClient) IsLoggedIn() bool {
	return w.Client.Store.ID != nil
}

func (w *WhatsAppClient) IsConnected() bool {
	return w.Client.IsConnected() && w.Client.Store.ID != nil
}

func (w *WhatsAppClient) GetPhoneNumber() string {
	if w.Client.Store.ID == nil {
		return ""
	}
	return w.Client.Store.ID.User
}

func (w *WhatsAppClient) GetName() string {
	if w.Client.Store.ID == nil {
		return ""
	}
	return w.Client.Store.PushName
}

// SessionIdentity is the full device JID, e.g. "5511999999999:12@s.whatsapp.net".
func (w *WhatsAppClient) SessionIdentity() string {
	if w.Client.Store.ID == nil {
		return ""
	}
	return w.Client.Store.ID.String()
}

func (w *WhatsAppClient) Ready() bool {
	return w.IsConnected()
}

// WaitReady polls until the session is connected or ctx ends.
func (w *WhatsAppClient) WaitReady(ctx context.Context) error {
	if !w.IsLoggedIn() {
		return ErrNotPaired
	}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for !w.Ready() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Logout unpairs the device and reconnects to offer a fresh QR code.
func (w *WhatsAppClient) Logout(ctx context.Context) error {
	w.qrLock.Lock()
	w.qrCode = ""
	w.qrLock.Unlock()

	if err := w.Client.Logout(ctx); err != nil {
		return err
	}
	w.Client.Disconnect()

	qrChan, err := w.Client.GetQRChannel(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("qr channel: %w", err)
	}
	if err := w.Client.Connect(); err != nil {
		w.log.Warn("reconnect after logout failed", zap.Error(err))
		return err
	}
	go w.watchQR(qrChan)
	return nil
}

func (w *WhatsAppClient) Disconnect() {
	w.Client.Disconnect()
}
