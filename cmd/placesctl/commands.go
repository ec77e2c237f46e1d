package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/roamium/discovery/internal/auth"
	"github.com/roamium/discovery/internal/config"
	"github.com/roamium/discovery/internal/database"
	"github.com/roamium/discovery/internal/dto"
	"github.com/roamium/discovery/internal/geo"
	"github.com/roamium/discovery/internal/logging"
	"github.com/roamium/discovery/internal/overpass"
	"github.com/roamium/discovery/internal/repository"
	"github.com/roamium/discovery/internal/service"
	"github.com/roamium/discovery/internal/service/scoring"
	"github.com/roamium/discovery/internal/validation"
)

type options struct {
	placesFile  string
	databaseURL string
	overpassURL string
	offline     bool
	verbose     bool

	lat, lon, radius float64
	sortByDistance   bool

	categories    []string
	accessibility int
	weights       []float64

	subject string
	scopes  []string
	ttl     time.Duration
	secret  string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "placesctl",
		Short:         "Query nearby places and recommendations",
		Long:          `Aggregate places around a point from the local catalogue and OpenStreetMap, list their categories or rank them against preferences.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if opts.verbose {
				level = "debug"
			}
			logging.Init(logging.Config{Level: level, Format: "console", Output: cmd.ErrOrStderr()})
		},
	}

	root.PersistentFlags().StringVar(&opts.placesFile, "places-file", "", "JSON seed with places, mirrors and reviews")
	root.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "", "PostGIS DSN (defaults to DATABASE_URL)")
	root.PersistentFlags().StringVar(&opts.overpassURL, "overpass-url", "", "Overpass interpreter URL (defaults to OVERPASS_URL)")
	root.PersistentFlags().BoolVar(&opts.offline, "offline", false, "Skip OpenStreetMap and use local places only")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging")

	root.AddCommand(
		newNearbyCmd(opts),
		newCategoriesCmd(opts),
		newRecommendCmd(opts),
		newTokenCmd(opts),
	)
	return root
}

func addLocationFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().Float64Var(&opts.lat, "lat", 0, "Latitude of the query origin")
	cmd.Flags().Float64Var(&opts.lon, "lon", 0, "Longitude of the query origin")
	cmd.Flags().Float64VarP(&opts.radius, "radius", "r", 0, "Search radius in metres (defaults to DEFAULT_RADIUS)")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
}

func newNearbyCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nearby",
		Short: "List places around a point",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAggregator(cmd.Context(), opts, func(agg *service.Aggregator) error {
				places, err := agg.Aggregate(cmd.Context(), opts.request())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), places)
			})
		},
	}
	addLocationFlags(cmd, opts)
	cmd.Flags().BoolVar(&opts.sortByDistance, "sort-by-distance", false, "Order places by ascending distance")
	return cmd
}

func newCategoriesCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List the categories of places around a point",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAggregator(cmd.Context(), opts, func(agg *service.Aggregator) error {
				places, err := agg.Aggregate(cmd.Context(), opts.request())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), dto.CategoriesResponse{Categories: service.ExtractCategories(places)})
			})
		},
	}
	addLocationFlags(cmd, opts)
	return cmd
}

func newRecommendCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Rank places around a point against preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.accessibility < 0 || opts.accessibility > 2 {
				return fmt.Errorf("--accessibility must be 0, 1 or 2")
			}
			return withAggregator(cmd.Context(), opts, func(agg *service.Aggregator) error {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				weights, err := opts.scoringWeights(cfg.Weights)
				if err != nil {
					return err
				}

				places, err := agg.Aggregate(cmd.Context(), opts.request())
				if err != nil {
					return err
				}
				ranked := scoring.Recommend(places, scoring.Preferences{
					Categories:    opts.categories,
					Accessibility: opts.accessibility,
					Weights:       weights,
				})
				return writeJSON(cmd.OutOrStdout(), ranked)
			})
		},
	}
	addLocationFlags(cmd, opts)
	cmd.Flags().StringSliceVarP(&opts.categories, "categories", "c", nil, "Desired categories")
	cmd.Flags().IntVarP(&opts.accessibility, "accessibility", "a", 0, "Accessibility requirement (0 none, 1 limited, 2 full)")
	cmd.Flags().Float64SliceVar(&opts.weights, "weights", nil, "category,accessibility,distance,rating weights (defaults to RECOMMEND_WEIGHTS)")
	return cmd
}

func newTokenCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the places API",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := opts.secret
			if secret == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				secret = cfg.JWTSecret
			}
			token, err := auth.NewJWTManager(secret, opts.ttl).GenerateToken(opts.subject, opts.scopes...)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&opts.subject, "subject", "", "Token subject")
	cmd.Flags().StringSliceVar(&opts.scopes, "scope", []string{auth.ScopePlacesRead, auth.ScopePlacesRecommend}, "Granted scopes")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 24*time.Hour, "Token lifetime")
	cmd.Flags().StringVar(&opts.secret, "secret", "", "HMAC secret (defaults to JWT_SECRET)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func (o *options) request() service.AggregateRequest {
	return service.AggregateRequest{
		Center:         geo.NewPoint(o.lon, o.lat),
		Radius:         o.radius,
		SortByDistance: o.sortByDistance,
	}
}

func (o *options) scoringWeights(defaults config.WeightsConfig) (scoring.Weights, error) {
	base := scoring.Weights{
		Category:      defaults.Category,
		Accessibility: defaults.Accessibility,
		Distance:      defaults.Distance,
		Rating:        defaults.Rating,
	}
	if len(o.weights) == 0 {
		return scoring.DefaultWeights(o.accessibility, base), nil
	}
	if len(o.weights) != 4 {
		return scoring.Weights{}, fmt.Errorf("--weights expects 4 values, got %d", len(o.weights))
	}
	input := dto.WeightsInput{Category: &o.weights[0], Accessibility: &o.weights[1], Distance: &o.weights[2], Rating: &o.weights[3]}
	if err := validation.Struct(input); err != nil {
		return scoring.Weights{}, err
	}
	return scoring.Weights{Category: o.weights[0], Accessibility: o.weights[1], Distance: o.weights[2], Rating: o.weights[3]}, nil
}

// withAggregator builds the pipeline from the flags, runs fn and releases any
// database connection afterwards.
func withAggregator(ctx context.Context, opts *options, fn func(*service.Aggregator) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var repo repository.PlacesRepository
	dsn := opts.databaseURL
	if dsn == "" {
		dsn = cfg.DatabaseURL
	}
	switch {
	case opts.placesFile != "":
		seeded, err := repository.LoadSeedFile(opts.placesFile)
		if err != nil {
			return err
		}
		repo = seeded
	case dsn != "":
		pool, err := database.Connect(ctx, dsn)
		if err != nil {
			return err
		}
		defer pool.Close()
		repo = repository.NewPGXPlacesRepository(pool)
	default:
		return errors.New("either --places-file or --database-url is required")
	}

	sources := []service.PlaceSource{service.NewLocalSource(repo)}
	if !opts.offline {
		overpassCfg := cfg.Overpass
		if opts.overpassURL != "" {
			overpassCfg.URL = opts.overpassURL
		}
		sources = append(sources, service.NewExternalSource(overpass.NewClient(nil, overpassCfg), repo, service.ExternalSourceOptions{
			TimeoutSeconds: int(overpassCfg.Timeout / time.Second),
			PhoneRegion:    cfg.PhoneRegion,
		}))
	}

	return fn(service.NewAggregator(cfg.DefaultRadius, sources...))
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
