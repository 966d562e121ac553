// Package template resolves notification templates through a tiered
// fallback chain (cache, store by language, store in English, raw blob
// storage, generic fallback) and renders them with named variables.
package template

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/heraldapp/herald/internal/db"
	"github.com/heraldapp/herald/internal/metrics"
	"github.com/heraldapp/herald/internal/provider"
)

// FallbackLanguage is the language tried when the requested one has no
// template row.
const FallbackLanguage = "en"

// Repository is the template lookup surface the resolver needs.
type Repository interface {
	GetTemplate(ctx context.Context, name, templateType, language string) (*db.NotificationTemplate, error)
}

// Cache is the TTL-bounded template cache surface.
type Cache interface {
	Get(ctx context.Context, name, templateType, language string) (*db.NotificationTemplate, error)
	Set(ctx context.Context, tmpl *db.NotificationTemplate) error
}

// Rendered is the outcome of template resolution plus variable rendering.
type Rendered struct {
	Subject      string
	BodyHTML     string
	BodyText     string
	TemplateName string
	Language     string
	Fallback     bool
}

// Resolver resolves (name, type, language) to rendered content.
type Resolver struct {
	repo    Repository
	cache   Cache
	storage provider.TemplateStore
	logger  *zap.Logger
}

// NewResolver creates a template resolver. cache and storage may be nil,
// in which case those tiers are skipped.
func NewResolver(repo Repository, cache Cache, storage provider.TemplateStore, logger *zap.Logger) *Resolver {
	return &Resolver{
		repo:    repo,
		cache:   cache,
		storage: storage,
		logger:  logger,
	}
}

// ResolveEmail resolves and renders an email template. It never fails:
// any resolution or rendering problem degrades to a generic fallback body
// so delivery is not blocked by a broken template.
func (r *Resolver) ResolveEmail(ctx context.Context, name string, vars map[string]any, language string) *Rendered {
	tmpl, err := r.resolve(ctx, name, db.TypeEmail, language)
	if err != nil {
		r.logger.Error("template resolution failed, using generic fallback",
			zap.String("template", name),
			zap.String("language", language),
			zap.Error(err),
		)
		return genericFallback(name, language)
	}

	rendered := &Rendered{
		Subject:      Render(deref(tmpl.Subject), vars),
		BodyHTML:     Render(deref(tmpl.BodyHTML), vars),
		BodyText:     Render(deref(tmpl.BodyText), vars),
		TemplateName: tmpl.TemplateName,
		Language:     tmpl.Language,
		Fallback:     tmpl.Language != language,
	}

	if rendered.Subject == "" && rendered.BodyHTML == "" && rendered.BodyText == "" {
		r.logger.Warn("template rendered empty, using generic fallback",
			zap.String("template", name),
		)
		return genericFallback(name, language)
	}

	return rendered
}

// ResolveSms resolves and renders an SMS template body. SMS content comes
// from the text body only; resolution problems degrade to the generic
// fallback text.
func (r *Resolver) ResolveSms(ctx context.Context, name string, vars map[string]any, language string) string {
	tmpl, err := r.resolve(ctx, name, db.TypeSMS, language)
	if err != nil {
		r.logger.Error("sms template resolution failed, using generic fallback",
			zap.String("template", name),
			zap.Error(err),
		)
		return genericFallback(name, language).BodyText
	}

	body := Render(deref(tmpl.BodyText), vars)
	if body == "" {
		return genericFallback(name, language).BodyText
	}
	return body
}

// resolve walks the tier chain: cache, exact-language row, English row,
// blob storage. Any tier hit below the cache is written back to the cache
// before returning. A "not found" cascades to the next tier; any other
// error aborts resolution so the caller can degrade.
func (r *Resolver) resolve(ctx context.Context, name, templateType, language string) (*db.NotificationTemplate, error) {
	if r.cache != nil {
		cached, err := r.cache.Get(ctx, name, templateType, language)
		if err != nil {
			r.logger.Warn("template cache lookup failed",
				zap.String("template", name),
				zap.Error(err),
			)
		} else if cached != nil {
			metrics.RecordTemplateCache("hit")
			return cached, nil
		}
		metrics.RecordTemplateCache("miss")
	}

	tmpl, err := r.repo.GetTemplate(ctx, name, templateType, language)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	if tmpl == nil && language != FallbackLanguage {
		tmpl, err = r.repo.GetTemplate(ctx, name, templateType, FallbackLanguage)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
		if tmpl != nil {
			r.logger.Debug("using English fallback for template",
				zap.String("template", name),
				zap.String("requested_language", language),
			)
		}
	}

	if tmpl == nil && r.storage != nil {
		content, err := r.storage.Get(ctx, name, language)
		if err != nil && !errors.Is(err, provider.ErrTemplateNotFound) {
			return nil, err
		}
		if err == nil {
			tmpl = syntheticTemplate(name, templateType, language, content)
		}
	}

	if tmpl == nil {
		return nil, db.ErrNotFound
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, tmpl); err != nil {
			r.logger.Warn("template cache write failed",
				zap.String("template", name),
				zap.Error(err),
			)
		}
	}

	return tmpl, nil
}

// syntheticTemplate wraps raw storage content into a template record so
// the rest of the pipeline sees one shape.
func syntheticTemplate(name, templateType, language, content string) *db.NotificationTemplate {
	body := content
	tmpl := &db.NotificationTemplate{
		TemplateID:   uuid.New(),
		TemplateName: name,
		TemplateType: templateType,
		Language:     language,
		IsActive:     true,
	}
	if templateType == db.TypeSMS {
		tmpl.BodyText = &body
	} else {
		tmpl.BodyHTML = &body
	}
	return tmpl
}

func genericFallback(name, language string) *Rendered {
	return &Rendered{
		Subject:      "Notification",
		BodyHTML:     "<p>A notification was sent from Herald.</p>",
		BodyText:     "A notification was sent from Herald.",
		TemplateName: name,
		Language:     language,
		Fallback:     true,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
