package render

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strconv"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/webitel/inspection-exporter/internal/domain/model/inspection"
)

const (
	DefaultWidth          = 794
	DefaultViewportHeight = 900
	DefaultPhotoWidth     = 400
	maxPhotoLoads         = 4
	dateLayout            = "02 Jan 2006"
)

// Renderer produces the report view of an inspection. Render returns once the
// view has settled: every photo has been fetched or given up on.
type Renderer interface {
	Render(ctx context.Context, rec *inspection.Record) (*View, error)
}

// PhotoLoader fetches and decodes one inspection photo.
type PhotoLoader interface {
	Load(ctx context.Context, photo inspection.Photo) (image.Image, error)
}

type ReportRenderer struct {
	photos         PhotoLoader
	theme          Theme
	width          int
	viewportHeight int
	photoWidth     int
	log            *slog.Logger
}

type Option func(*ReportRenderer)

func WithTheme(t Theme) Option { return func(r *ReportRenderer) { r.theme = t } }

func WithWidth(w int) Option {
	return func(r *ReportRenderer) {
		if w > 0 {
			r.width = w
		}
	}
}

func WithViewportHeight(h int) Option {
	return func(r *ReportRenderer) {
		if h > 0 {
			r.viewportHeight = h
		}
	}
}

func WithPhotoWidth(w int) Option {
	return func(r *ReportRenderer) {
		if w > 0 {
			r.photoWidth = w
		}
	}
}

func WithLogger(l *slog.Logger) Option { return func(r *ReportRenderer) { r.log = l } }

func NewReportRenderer(photos PhotoLoader, opts ...Option) *ReportRenderer {
	r := &ReportRenderer{
		photos:         photos,
		theme:          Light,
		width:          DefaultWidth,
		viewportHeight: DefaultViewportHeight,
		photoWidth:     DefaultPhotoWidth,
		log:            slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ReportRenderer) Render(ctx context.Context, rec *inspection.Record) (*View, error) {
	if rec == nil {
		return nil, fmt.Errorf("render: nil inspection")
	}
	photos, err := r.loadPhotos(ctx, rec)
	if err != nil {
		return nil, err
	}

	v := &View{
		RecordID:    rec.ID,
		Width:       r.width,
		Theme:       r.theme,
		Constraints: Constraints{MaxHeight: r.viewportHeight, Overflow: OverflowHidden},
	}
	v.Blocks = append(v.Blocks, r.header(rec)...)
	for _, g := range inspection.Groups {
		v.Blocks = append(v.Blocks, Block{Kind: BlockSection, Text: g.Title, Foreground: ClassText, Background: ClassHeader})
		for _, name := range g.Checks {
			res := rec.Result(name)
			v.Blocks = append(v.Blocks, Block{
				Kind:       BlockCheck,
				Text:       name.Label(),
				Value:      resultLabel(res),
				Foreground: ClassText,
				Background: ClassCard,
				ValueClass: resultClass(res),
			})
		}
	}
	if rec.Comments != "" {
		v.Blocks = append(v.Blocks,
			Block{Kind: BlockSection, Text: "Comments", Foreground: ClassText, Background: ClassHeader},
			Block{Kind: BlockText, Text: rec.Comments, Foreground: ClassText, Background: ClassCard},
		)
	}
	if rec.DamageNotes != "" {
		v.Blocks = append(v.Blocks,
			Block{Kind: BlockSection, Text: "Damage notes", Foreground: ClassText, Background: ClassHeader},
			Block{Kind: BlockText, Text: rec.DamageNotes, Foreground: ClassText, Background: ClassCard},
		)
	}
	if len(photos) > 0 {
		v.Blocks = append(v.Blocks,
			Block{Kind: BlockSection, Text: "Photos", Foreground: ClassText, Background: ClassHeader},
			Block{Kind: BlockPhotos, Foreground: ClassMuted, Background: ClassCard, Photos: photos},
		)
	}
	return v, nil
}

func (r *ReportRenderer) header(rec *inspection.Record) []Block {
	title := rec.Vehicle.Name
	if rec.Vehicle.Registration != "" {
		title = rec.Vehicle.Registration + "  " + title
	}
	status, statusClass := "No defects", ClassGood
	if rec.HasDefects() {
		status, statusClass = "Defects found", ClassBad
	}
	inspector := rec.Inspector.Name
	if inspector == "" {
		inspector = "-"
	}
	return []Block{
		{Kind: BlockTitle, Text: "Weekly inspection: " + title, Value: status, Foreground: ClassText, Background: ClassHeader, ValueClass: statusClass},
		{Kind: BlockField, Text: "Date", Value: rec.InspectedAt.Format(dateLayout), Foreground: ClassMuted, ValueClass: ClassText},
		{Kind: BlockField, Text: "Inspector", Value: inspector, Foreground: ClassMuted, ValueClass: ClassText},
		{Kind: BlockField, Text: "Odometer", Value: strconv.FormatInt(rec.Odometer, 10), Foreground: ClassMuted, ValueClass: ClassText},
		{Kind: BlockDivider, Background: ClassBorder},
	}
}

// loadPhotos fetches photos concurrently, keeping their order. A photo that
// cannot be loaded becomes a placeholder; only ctx cancellation aborts.
func (r *ReportRenderer) loadPhotos(ctx context.Context, rec *inspection.Record) ([]image.Image, error) {
	out := make([]image.Image, len(rec.Photos))
	if r.photos == nil || len(rec.Photos) == 0 {
		return out, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxPhotoLoads)
	for i, p := range rec.Photos {
		g.Go(func() error {
			img, err := r.photos.Load(gctx, p)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.log.WarnContext(ctx, "render.photo.load_failed",
					slog.Int64("inspection_id", rec.ID),
					slog.Int("photo", i),
					slog.String("error", err.Error()),
				)
				return nil
			}
			out[i] = imaging.Resize(img, r.photoWidth, 0, imaging.Lanczos)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("render: load photos: %w", err)
	}
	return out, nil
}

func resultLabel(r inspection.CheckResult) string {
	switch r {
	case inspection.Satisfactory:
		return "OK"
	case inspection.Defective:
		return "DEFECT"
	case inspection.NotApplicable:
		return "N/A"
	default:
		return "NOT SET"
	}
}

func resultClass(r inspection.CheckResult) ColorClass {
	switch r {
	case inspection.Satisfactory:
		return ClassGood
	case inspection.Defective:
		return ClassBad
	case inspection.NotApplicable:
		return ClassNA
	default:
		return ClassUnset
	}
}
