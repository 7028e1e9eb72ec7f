package initializers

import (
	"context"

	"github.com/Kariqs/galio-api/archive"
	"github.com/Kariqs/galio-api/events"
	"github.com/Kariqs/galio-api/mpesa"
	"github.com/Kariqs/galio-api/services"
	"github.com/rs/zerolog/log"
)

var (
	Checkout    *services.CheckoutService
	Carts       *services.CartService
	Orders      *services.OrderService
	StatusCache *services.StatusCache
)

// InitServices builds the checkout stack on top of DB. The returned function
// releases background resources.
func InitServices(ctx context.Context, cfg Config) func() {
	StatusCache = services.NewStatusCache(cfg.StatusCacheTTL)
	StatusCache.Start()

	provider := mpesa.NewClient(mpesa.Config{
		ConsumerKey:    cfg.MpesaConsumerKey,
		ConsumerSecret: cfg.MpesaConsumerSecret,
		ShortCode:      cfg.MpesaShortCode,
		Passkey:        cfg.MpesaPasskey,
		CallbackURL:    cfg.MpesaCallbackURL,
		Environment:    cfg.MpesaEnvironment,
		Timeout:        cfg.MpesaTimeout,
	})

	opts := []services.Option{
		services.WithTaxRate(cfg.TaxRate),
		services.WithPollWindow(cfg.PollWindow),
		services.WithOrphanAge(cfg.OrphanOrderAge),
	}

	closers := []func(){StatusCache.Stop}

	if cfg.AMQPURL != "" {
		publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Warn().Err(err).Msg("order events disabled")
		} else {
			opts = append(opts, services.WithPublisher(publisher))
			closers = append(closers, func() { publisher.Close() })
		}
	}

	if cfg.ArchiveBucket != "" {
		archiver, err := archive.NewS3Archiver(ctx, cfg.ArchiveBucket)
		if err != nil {
			log.Warn().Err(err).Msg("callback archive disabled")
		} else {
			opts = append(opts, services.WithArchiver(archiver))
		}
	}

	Checkout = services.NewCheckoutService(DB, provider, StatusCache, opts...)
	Carts = services.NewCartService(DB)
	Orders = services.NewOrderService(DB)

	reaper, err := Checkout.StartReaper(cfg.ReaperSchedule)
	if err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.ReaperSchedule).Msg("invalid reaper schedule")
	}
	closers = append(closers, func() { <-reaper.Stop().Done() })

	return func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}
