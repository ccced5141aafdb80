package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wacontacts/internal/infrastructure"
	"wacontacts/internal/interfaces"
	api "wacontacts/internal/interfaces/http"
	"wacontacts/internal/repository"
	"wacontacts/internal/usecases"
)

const (
	shutdownTimeout = 15 * time.Second
	observeTimeout  = 10 * time.Second
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and WhatsApp sessions",
		Long: `Start the HTTP API. WhatsApp sessions are paired per user through
/api/whatsapp/connect and their incoming messages are written through to
the contact store as they arrive.

Example:
  wacontacts serve
  wacontacts serve --config ./config.yaml --verbose`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts)
		},
	}
}

func runServe(parent context.Context, opts *RootOptions) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := opts.bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	if err := rt.cfg.ValidateServe(); err != nil {
		return err
	}

	auth := usecases.NewAuthUsecase(repository.NewUserRepository(rt.db), rt.cfg.JWT.Secret, rt.cfg.JWT.Expiry)
	if admin := rt.cfg.Admin; admin.Email != "" && admin.Password != "" {
		created, err := auth.EnsureAdmin(ctx, admin.Email, admin.Password, admin.Phone)
		if err != nil {
			rt.log.Warn("ensure admin user", zap.Error(err))
		} else if created {
			rt.log.Info("admin user created", zap.String("email", admin.Email))
		}
	}

	service := rt.contactService()
	manager := infrastructure.NewWhatsAppManager(rt.cfg.WhatsApp.DevicesDir, rt.log)
	defer manager.DisconnectAll()
	manager.MessageHook = func(client *infrastructure.WhatsAppClient, msg interfaces.MessageSnapshot) {
		mctx, cancel := context.WithTimeout(context.Background(), observeTimeout)
		defer cancel()
		if _, err := service.ObserveMessage(mctx, client, msg); err != nil && !errors.Is(err, usecases.ErrNotAuthorized) {
			rt.log.Warn("observe message",
				zap.Int64("user_id", client.UserID),
				zap.String("chat_id", msg.ChatID),
				zap.Error(err))
		}
	}

	sessions := func(userID int64) interfaces.Directory {
		if client := manager.GetClient(userID); client != nil {
			return client
		}
		return nil
	}

	if !opts.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	api.SetupRoutes(r,
		api.NewHandler(service, auth, sessions, rt.log),
		api.NewWhatsAppHandler(manager, rt.log),
		api.NewMiddleware(rt.cfg.JWT.Secret))

	srv := &http.Server{
		Addr:              rt.cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		rt.log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		rt.log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
