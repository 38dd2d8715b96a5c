package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/go-responder-bot/internal/config"
	"github.com/tbourn/go-responder-bot/internal/delivery"
	httpapi "github.com/tbourn/go-responder-bot/internal/http"
	"github.com/tbourn/go-responder-bot/internal/observability"
	"github.com/tbourn/go-responder-bot/internal/repo"
	"github.com/tbourn/go-responder-bot/internal/services"
)

const (
	shutdownGrace = 15 * time.Second
	purgeInterval = time.Hour
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Listen for Slack events and serve the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", ":"+cfg.Port)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			return serve(ctx, cfg, ln)
		},
	}
}

// serve runs the bot on ln until ctx is cancelled, then drains HTTP requests
// and in-flight Slack deliveries.
func serve(ctx context.Context, cfg config.Config, ln net.Listener) error {
	if err := cfg.RequireSlack(); err != nil {
		_ = ln.Close()
		return err
	}

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, Version)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, closeDB, err := openStore(cfg)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer closeDB()

	var schema repo.SchemaGuard
	set := services.NewResponderSet(db, &schema, cfg.Bot.MatchTimeout)
	if _, err := set.Load(ctx); err != nil {
		_ = ln.Close()
		return fmt.Errorf("load responders: %w", err)
	}

	out, err := delivery.NewSlack(delivery.Options{
		Token:  cfg.Slack.BotToken,
		APIURL: cfg.Slack.APIURL,
	})
	if err != nil {
		_ = ln.Close()
		return err
	}
	mode, err := services.ParseReplyMode(cfg.Bot.ReplyMode)
	if err != nil {
		_ = ln.Close()
		return err
	}
	disp := services.NewDispatcher(set, out, mode, cfg.Bot.DeliveryTimeout)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, cfg, httpapi.Deps{
		Responders: services.NewResponderService(db, set, &schema),
		Set:        set,
		Dispatcher: disp,
	})

	srv := &http.Server{
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", ln.Addr().String()).Str("reply_mode", string(mode)).Msg("listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		err := srv.Shutdown(sctx)
		// Replies for events acknowledged before shutdown still go out.
		disp.Wait()
		log.Info().Msg("server stopped")
		return err
	})
	g.Go(func() error {
		purgeIdempotency(gctx, db, purgeInterval)
		return nil
	})
	return g.Wait()
}

// purgeIdempotency deletes expired idempotency records every interval until
// ctx is done.
func purgeIdempotency(ctx context.Context, db *gorm.DB, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := repo.PurgeIdempotency(ctx, db, time.Now().UTC())
			if err != nil {
				log.Warn().Err(err).Msg("idempotency purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("removed", n).Msg("idempotency records purged")
			}
		}
	}
}
