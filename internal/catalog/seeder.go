package catalog

import (
	"context"
	"fmt"
	"strings"

	binance "github.com/binance/binance-connector-go"
	"github.com/candle-sync/internal/database"
	"github.com/candle-sync/internal/exchange"
	"github.com/candle-sync/pkg/config"
	"github.com/candle-sync/pkg/models"
	"github.com/sirupsen/logrus"
)

// Seeder loads instrument listings from the venues and stores them in the database
type Seeder struct {
	mysql      *database.MySQLClient
	config     *config.Config
	logger     *logrus.Entry
	classifier *Classifier

	binance *binance.Client
	oanda   *exchange.OANDAClient
}

// NewSeeder creates a new catalog seeder
func NewSeeder(mysql *database.MySQLClient, cfg *config.Config, logger *logrus.Logger) *Seeder {
	return &Seeder{
		mysql:      mysql,
		config:     cfg,
		logger:     logger.WithField("component", "seeder"),
		classifier: NewClassifier(),
		binance:    binance.NewClient(cfg.Providers.Binance.APIKey, cfg.Providers.Binance.SecretKey, cfg.Providers.Binance.APIURL),
		oanda:      exchange.NewOANDAClient(&cfg.Providers.OANDA, logger),
	}
}

// SeedAll loads instruments from all configured venues
func (s *Seeder) SeedAll(ctx context.Context) error {
	s.logger.Info("Seeding instruments from all venues...")

	var allErrors []error

	// Binance listings come from the public API, no key needed
	if err := s.seedBinance(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to seed Binance instruments")
		allErrors = append(allErrors, err)
	}

	if s.config.Providers.OANDA.APIKey != "" && s.config.Providers.OANDA.AccountID != "" {
		if err := s.seedOANDA(ctx); err != nil {
			s.logger.WithError(err).Error("Failed to seed OANDA instruments")
			allErrors = append(allErrors, err)
		}
	} else {
		s.logger.Info("OANDA not configured, skipping OANDA instrument seeding")
	}

	if len(allErrors) > 0 {
		s.logger.WithField("errors", len(allErrors)).Error("Some venues failed to seed")
		return allErrors[0]
	}

	s.logger.Info("Completed seeding instruments from all venues")
	return nil
}

// seedBinance loads spot pairs from Binance exchange info
func (s *Seeder) seedBinance(ctx context.Context) error {
	s.logger.Info("Seeding Binance instruments...")

	info, err := s.binance.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch exchange info: %w", err)
	}

	stored := 0
	updated := 0
	total := 0

	for _, symbolInfo := range info.Symbols {
		// Only USDT-quoted spot pairs enter the catalog
		if symbolInfo.QuoteAsset != "USDT" {
			continue
		}
		total++

		instrument := &models.Instrument{
			Symbol:        symbolInfo.Symbol,
			FullName:      symbolInfo.BaseAsset + "/" + symbolInfo.QuoteAsset,
			Category:      models.CategoryCrypto,
			Venue:         "binance",
			BaseCurrency:  symbolInfo.BaseAsset,
			QuoteCurrency: symbolInfo.QuoteAsset,
			IsActive:      symbolInfo.Status == "TRADING",
		}

		created, err := s.store(ctx, instrument)
		if err != nil {
			s.logger.WithError(err).WithField("symbol", instrument.Symbol).Error("Failed to store instrument")
			continue
		}
		if created {
			stored++
		} else {
			updated++
		}
	}

	s.logger.WithFields(logrus.Fields{
		"stored":  stored,
		"updated": updated,
		"total":   total,
	}).Info("Completed Binance instrument seeding")

	return nil
}

// seedOANDA loads instruments available to the configured OANDA account
func (s *Seeder) seedOANDA(ctx context.Context) error {
	s.logger.Info("Seeding OANDA instruments...")

	instruments, err := s.oanda.GetInstruments(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch instruments: %w", err)
	}

	stored := 0
	updated := 0

	for _, oandaInst := range instruments {
		var category models.Category
		switch oandaInst.Type {
		case "CURRENCY", "METAL":
			category = models.CategoryForex
		case "CFD":
			category = models.CategoryIndex
		default:
			category = s.classifier.Classify(oandaInst.Name)
		}

		base, quote := splitOANDAName(oandaInst.Name)

		instrument := &models.Instrument{
			Symbol:        oandaInst.Name,
			FullName:      oandaInst.DisplayName,
			Category:      category,
			Venue:         "oanda",
			BaseCurrency:  base,
			QuoteCurrency: quote,
			IsActive:      true,
		}

		created, err := s.store(ctx, instrument)
		if err != nil {
			s.logger.WithError(err).WithField("symbol", instrument.Symbol).Error("Failed to store instrument")
			continue
		}
		if created {
			stored++
		} else {
			updated++
		}
	}

	s.logger.WithFields(logrus.Fields{
		"stored":  stored,
		"updated": updated,
		"total":   len(instruments),
	}).Info("Completed OANDA instrument seeding")

	return nil
}

// store upserts one instrument and reports whether it was newly created
func (s *Seeder) store(ctx context.Context, instrument *models.Instrument) (bool, error) {
	existing, err := s.mysql.GetInstrument(ctx, instrument.Symbol)
	if err != nil {
		return false, err
	}

	if err := s.mysql.UpsertInstrument(ctx, instrument); err != nil {
		return false, err
	}

	return existing == nil, nil
}

// splitOANDAName splits an OANDA instrument name like EUR_USD into its halves
func splitOANDAName(name string) (string, string) {
	parts := strings.SplitN(name, "_", 2)
	if len(parts) != 2 {
		return name, ""
	}
	return parts[0], parts[1]
}
