package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"stepwise/internal/ai"
	"stepwise/internal/config"
	"stepwise/internal/frames"
	"stepwise/internal/logging"
	"stepwise/internal/storage"
	"stepwise/internal/store"
)

// session is one hydrated profile bound to a command invocation.
type session struct {
	cfg       *config.Config
	logger    *slog.Logger
	client    *ai.Client
	store     *store.Store
	persister *store.Persister
	dbPath    string
	close     func() error
}

func (c *commandContext) openSession(ctx context.Context) (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	var adapter storage.Adapter
	closer := func() error { return nil }
	dbPath := ":memory:"
	if c.isEphemeral() {
		adapter = storage.NewMemory(cfg.MaxPayloadBytes(), logger)
	} else {
		db, err := storage.Open(cfg, logger)
		if err != nil {
			if errors.Is(err, storage.ErrProfileLocked) {
				return nil, fmt.Errorf("profile is in use by another stepwise process: %w", err)
			}
			return nil, fmt.Errorf("open profile: %w", err)
		}
		adapter = db
		closer = db.Close
		dbPath = db.Path()
	}

	client := ai.NewFromConfig(cfg, logger)
	extractor := frames.NewExtractor(frames.Options{
		SeekOffset:    cfg.Frames.SeekOffsetSeconds,
		SeekTolerance: cfg.Frames.SeekToleranceSeconds,
		SeekTimeout:   cfg.SeekTimeout(),
		MaxWidth:      cfg.Frames.MaxWidth,
		Quality:       cfg.Frames.JPEGQuality,
		Logger:        logger,
	})
	st := store.New(store.Options{
		Adapter:           adapter,
		Assistant:         client,
		Extractor:         extractor,
		Logger:            logger,
		ScoutHistoryLimit: cfg.Store.ScoutHistoryLimit,
	})
	if err := st.Hydrate(ctx); err != nil {
		_ = closer()
		return nil, fmt.Errorf("load profile: %w", err)
	}
	persister := store.NewPersister(adapter,
		store.WithDebounce(cfg.PersistDebounce()),
		store.WithPersistLogger(logger),
	)
	persister.Start(st)

	return &session{
		cfg:       cfg,
		logger:    logger,
		client:    client,
		store:     st,
		persister: persister,
		dbPath:    dbPath,
		close:     closer,
	}, nil
}

// shutdown flushes pending writes before releasing the profile lock.
func (s *session) shutdown(ctx context.Context) error {
	var errs []error
	if err := s.persister.Stop(context.WithoutCancel(ctx)); err != nil {
		errs = append(errs, fmt.Errorf("save profile: %w", err))
	}
	if err := s.close(); err != nil {
		errs = append(errs, fmt.Errorf("close profile: %w", err))
	}
	return errors.Join(errs...)
}

// withSession runs fn against a hydrated profile and reports any notice
// the store raised along the way.
func (c *commandContext) withSession(cmd *cobra.Command, fn func(*session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sess, err := c.openSession(ctx)
	if err != nil {
		return err
	}
	runErr := fn(sess)
	printNotice(cmd.ErrOrStderr(), sess.store.State().Notice)
	if err := sess.shutdown(ctx); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

func printNotice(w io.Writer, notice *store.Notice) {
	if notice == nil {
		return
	}
	fmt.Fprintln(w, renderStatusLine("Notice", noticeStatus(notice.Reaction), notice.Message, shouldColorize(w)))
	if hint := noticeHint(notice.Reaction); hint != "" {
		fmt.Fprintf(w, "%s%-*s %s\n", statusIndent, statusLabelWidth, "", hint)
	}
}

func noticeStatus(reaction store.Reaction) statusKind {
	switch reaction {
	case store.ReactionTransientWarning, store.ReactionNewCredential:
		return statusWarn
	default:
		return statusError
	}
}

func noticeHint(reaction store.Reaction) string {
	switch reaction {
	case store.ReactionNewCredential:
		return "Run `stepwise key set` with a different API key."
	case store.ReactionTransientWarning:
		return "The service is busy; try again in a moment."
	case store.ReactionReselectSource:
		return "Run `stepwise frames --video FILE` to finish the screenshots."
	case store.ReactionExportBackup:
		return "Changes could not be saved. Run `stepwise export` to keep a backup."
	default:
		return ""
	}
}
