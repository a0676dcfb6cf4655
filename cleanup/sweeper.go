package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tnqbao/gau-media-service/config"
	"github.com/tnqbao/gau-media-service/entity"
	"github.com/tnqbao/gau-media-service/infra"
	"github.com/tnqbao/gau-media-service/media"
	"github.com/tnqbao/gau-media-service/repository"
	"github.com/tnqbao/gau-media-service/utils"
)

const chunkSize = 100

// DefaultDirectories are scanned for unused files on configured disks that
// hold no records.
var DefaultDirectories = []string{"media", "uploads", "public"}

var ErrNoOperation = errors.New("no cleanup operation specified, use orphaned, missing, unused or all")

// Records is the record storage the sweeper reads and prunes.
type Records interface {
	EachChunk(ctx context.Context, size int, fn func([]entity.Media) error) error
	Disks(ctx context.Context) ([]string, error)
	PathsOnDisk(ctx context.Context, disk string) (map[string]struct{}, error)
	DirectoriesOnDisk(ctx context.Context, disk string) ([]string, error)
	Delete(ctx context.Context, m *entity.Media) error
}

// Owners checks whether an owning record still exists.
type Owners interface {
	Exists(ctx context.Context, table, key, id string) (bool, error)
}

// Disks resolves disks by name and lists the configured ones.
type Disks interface {
	media.Disks
	Names() []string
}

// Remover deletes a record together with its file.
type Remover interface {
	Remove(ctx context.Context, record *entity.Media) error
}

type Options struct {
	Orphaned bool
	Missing  bool
	Unused   bool
	DryRun   bool
}

func (o Options) any() bool {
	return o.Orphaned || o.Missing || o.Unused
}

// All selects every pass.
func All(dryRun bool) Options {
	return Options{Orphaned: true, Missing: true, Unused: true, DryRun: dryRun}
}

// PassResult summarises one pass. Items lists what was (or would be) removed.
type PassResult struct {
	Count  int      `json:"count"`
	Bytes  int64    `json:"bytes"`
	Items  []string `json:"items"`
	Errors []string `json:"errors,omitempty"`
}

func (p *PassResult) add(item string, size int64) {
	p.Count++
	p.Bytes += size
	p.Items = append(p.Items, item)
}

func (p *PassResult) fail(format string, args ...any) {
	p.Errors = append(p.Errors, fmt.Sprintf(format, args...))
}

type Report struct {
	DryRun   bool        `json:"dry_run"`
	Orphaned *PassResult `json:"orphaned,omitempty"`
	Missing  *PassResult `json:"missing,omitempty"`
	Unused   *PassResult `json:"unused,omitempty"`
}

// Summary renders one line per pass that ran.
func (r *Report) Summary() []string {
	action := "Deleted"
	if r.DryRun {
		action = "Would delete"
	}
	var lines []string
	if r.Orphaned != nil {
		lines = append(lines, summaryLine(r.Orphaned, action, "orphaned record(s)", "No orphaned records found"))
	}
	if r.Missing != nil {
		lines = append(lines, summaryLine(r.Missing, action, "record(s) with missing files", "All media files exist"))
	}
	if r.Unused != nil {
		lines = append(lines, summaryLine(r.Unused, action, "unused file(s)", "No unused files found"))
	}
	return lines
}

func summaryLine(p *PassResult, action, noun, empty string) string {
	if p.Count == 0 {
		return empty
	}
	return fmt.Sprintf("%s %d %s (~%s)", action, p.Count, noun, utils.FormatBytes(p.Bytes))
}

// Sweeper finds and removes media that drifted out of sync with its owners or
// its disks.
type Sweeper struct {
	records  Records
	owners   Owners
	remover  Remover
	disks    Disks
	registry config.CollectionRegistry
	logger   media.Logger
}

func NewSweeper(records Records, owners Owners, remover Remover, disks Disks, registry config.CollectionRegistry, logger media.Logger) *Sweeper {
	return &Sweeper{
		records:  records,
		owners:   owners,
		remover:  remover,
		disks:    disks,
		registry: registry,
		logger:   logger,
	}
}

func (s *Sweeper) Run(ctx context.Context, opts Options) (*Report, error) {
	if !opts.any() {
		return nil, ErrNoOperation
	}
	if opts.DryRun {
		s.logger.WarningWithContextf(ctx, "[Cleanup] Dry run, no changes will be made")
	}

	report := &Report{DryRun: opts.DryRun}
	var err error
	if opts.Orphaned {
		if report.Orphaned, err = s.Orphaned(ctx, opts.DryRun); err != nil {
			return report, err
		}
	}
	if opts.Missing {
		if report.Missing, err = s.Missing(ctx, opts.DryRun); err != nil {
			return report, err
		}
	}
	if opts.Unused {
		if report.Unused, err = s.Unused(ctx, opts.DryRun); err != nil {
			return report, err
		}
	}

	for _, line := range report.Summary() {
		s.logger.InfoWithContextf(ctx, "[Cleanup] %s", line)
	}
	return report, nil
}

// Orphaned removes records whose owner no longer exists. Their files are
// deleted with them.
func (s *Sweeper) Orphaned(ctx context.Context, dryRun bool) (*PassResult, error) {
	result := &PassResult{}
	var orphans []entity.Media

	err := s.records.EachChunk(ctx, chunkSize, func(chunk []entity.Media) error {
		for _, rec := range chunk {
			def, ok := s.registry.Owner(rec.OwnerType)
			if !ok || def.Table == "" {
				result.fail("owner type %s of media %s is not registered", rec.OwnerType, rec.ID)
				continue
			}
			exists, err := s.owners.Exists(ctx, def.Table, def.Key, rec.OwnerID)
			if err != nil {
				result.fail("check owner %s %s: %v", rec.OwnerType, rec.OwnerID, err)
				continue
			}
			if exists {
				continue
			}
			result.add(fmt.Sprintf("%s/%s (ID: %s)", rec.Collection, rec.Path, rec.ID), sizeOf(rec))
			s.logger.WarningWithContextf(ctx, "[Cleanup] Orphaned: %s/%s (ID: %s)", rec.Collection, rec.Path, rec.ID)
			orphans = append(orphans, rec)
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("failed to scan media records: %w", err)
	}

	if dryRun {
		return result, nil
	}
	for i := range orphans {
		if err := s.remover.Remove(ctx, &orphans[i]); err != nil {
			result.fail("delete media %s: %v", orphans[i].ID, err)
		}
	}
	return result, nil
}

// Missing removes records whose file is gone. Nothing else is touched.
func (s *Sweeper) Missing(ctx context.Context, dryRun bool) (*PassResult, error) {
	result := &PassResult{}
	var missing []entity.Media

	err := s.records.EachChunk(ctx, chunkSize, func(chunk []entity.Media) error {
		for _, rec := range chunk {
			disk, err := s.disks.Disk(rec.Disk)
			if err != nil {
				result.fail("check %s://%s: %v", rec.Disk, rec.Path, err)
				continue
			}
			exists, err := disk.Exists(ctx, strings.TrimLeft(rec.Path, "/"))
			if err != nil {
				result.fail("check %s://%s: %v", rec.Disk, rec.Path, err)
				continue
			}
			if exists {
				continue
			}
			result.add(fmt.Sprintf("%s://%s (ID: %s)", rec.Disk, rec.Path, rec.ID), sizeOf(rec))
			s.logger.WarningWithContextf(ctx, "[Cleanup] Missing file: %s://%s (ID: %s)", rec.Disk, rec.Path, rec.ID)
			missing = append(missing, rec)
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("failed to scan media records: %w", err)
	}

	if dryRun {
		return result, nil
	}
	for i := range missing {
		if err := s.records.Delete(ctx, &missing[i]); err != nil {
			result.fail("delete media %s: %v", missing[i].ID, err)
		}
	}
	return result, nil
}

// Unused deletes files that no record points at. On disks with records only
// the directories those records live in are scanned. Configured disks without
// records are scanned in DefaultDirectories.
func (s *Sweeper) Unused(ctx context.Context, dryRun bool) (*PassResult, error) {
	result := &PassResult{}

	recorded, err := s.records.Disks(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list media disks: %w", err)
	}
	names := map[string]struct{}{}
	for _, name := range recorded {
		names[name] = struct{}{}
	}
	for _, name := range s.disks.Names() {
		names[name] = struct{}{}
	}
	diskNames := make([]string, 0, len(names))
	for name := range names {
		diskNames = append(diskNames, name)
	}
	sort.Strings(diskNames)

	for _, name := range diskNames {
		if err := s.sweepDisk(ctx, name, dryRun, result); err != nil {
			result.fail("scan disk %s: %v", name, err)
			s.logger.ErrorWithContextf(ctx, err, "[Cleanup] Failed to scan disk %s", name)
		}
	}
	return result, nil
}

func (s *Sweeper) sweepDisk(ctx context.Context, name string, dryRun bool, result *PassResult) error {
	disk, err := s.disks.Disk(name)
	if err != nil {
		return err
	}
	s.logger.InfoWithContextf(ctx, "[Cleanup] Scanning disk: %s", name)

	known, err := s.records.PathsOnDisk(ctx, name)
	if err != nil {
		return err
	}
	dirs, err := s.records.DirectoriesOnDisk(ctx, name)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		dirs = DefaultDirectories
	}

	seen := map[string]struct{}{}
	var unused []string
	for _, dir := range dirs {
		files, err := disk.AllFiles(ctx, dir)
		if err != nil {
			return err
		}
		for _, file := range files {
			file = strings.TrimLeft(file, "/")
			if _, ok := seen[file]; ok {
				continue
			}
			seen[file] = struct{}{}
			if _, ok := known[file]; !ok {
				unused = append(unused, file)
			}
		}
	}
	sort.Strings(unused)

	for _, file := range unused {
		size, err := disk.Size(ctx, file)
		if err != nil {
			size = 0
		}
		result.add(name+"://"+file, size)
		s.logger.WarningWithContextf(ctx, "[Cleanup] Unused: %s://%s", name, file)
		if dryRun {
			continue
		}
		if err := disk.Delete(ctx, file); err != nil {
			result.fail("delete %s://%s: %v", name, file, err)
		}
	}
	return nil
}

func sizeOf(rec entity.Media) int64 {
	if rec.Size == nil {
		return 0
	}
	return *rec.Size
}

// NewServiceSweeper builds a sweeper over the process's shared clients.
func NewServiceSweeper(cfg *config.Config, inf *infra.Infra, repo *repository.Repository) *Sweeper {
	library := inf.NewMediaLibrary(repo.MediaRepo)
	return NewSweeper(repo.MediaRepo, repo.OwnerRepo, library.Reconciler(), inf.Disks, cfg.Collections, inf.Logger)
}
