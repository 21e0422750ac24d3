package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"notifyhub/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// TemplateService manages message templates of a tenant
type TemplateService struct {
	db *gorm.DB
}

// NewTemplateService creates a new template service
func NewTemplateService(db *gorm.DB) *TemplateService {
	return &TemplateService{db: db}
}

// TemplateInput is used for create and partial update
type TemplateInput struct {
	Name      *string                `json:"name"`
	Content   *string                `json:"content"`
	Variables map[string]interface{} `json:"variables"`
}

// List returns the templates of userID, newest first
func (s *TemplateService) List(ctx context.Context, userID uint) ([]models.Template, error) {
	var templates []models.Template
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&templates).Error
	if err != nil {
		return nil, Wrap(err, "failed to list templates")
	}
	return templates, nil
}

// Get returns one template owned by userID
func (s *TemplateService) Get(ctx context.Context, userID, id uint) (*models.Template, error) {
	return findTemplate(s.db.WithContext(ctx), userID, id)
}

func findTemplate(db *gorm.DB, userID, id uint) (*models.Template, error) {
	var template models.Template
	err := db.Where("id = ? AND user_id = ?", id, userID).First(&template).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("template not found")
		}
		return nil, Wrap(err, "failed to load template")
	}
	return &template, nil
}

// Create stores a new template
func (s *TemplateService) Create(ctx context.Context, userID uint, in TemplateInput) (*models.Template, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, ValidationError("name is required")
	}
	if in.Content == nil || *in.Content == "" {
		return nil, ValidationError("content is required")
	}

	template := &models.Template{
		UserID:    userID,
		Name:      strings.TrimSpace(*in.Name),
		Content:   *in.Content,
		Variables: datatypes.JSONMap(in.Variables),
	}
	if err := s.db.WithContext(ctx).Create(template).Error; err != nil {
		return nil, Wrap(err, "failed to create template")
	}
	return template, nil
}

// Update applies the non-nil fields of in
func (s *TemplateService) Update(ctx context.Context, userID, id uint, in TemplateInput) (*models.Template, error) {
	template, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, ValidationError("name must not be empty")
		}
		template.Name = strings.TrimSpace(*in.Name)
	}
	if in.Content != nil {
		if *in.Content == "" {
			return nil, ValidationError("content must not be empty")
		}
		template.Content = *in.Content
	}
	if in.Variables != nil {
		template.Variables = datatypes.JSONMap(in.Variables)
	}

	if err := s.db.WithContext(ctx).Save(template).Error; err != nil {
		return nil, Wrap(err, "failed to update template")
	}
	return template, nil
}

// Delete removes a template
func (s *TemplateService) Delete(ctx context.Context, userID, id uint) error {
	result := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Template{})
	if result.Error != nil {
		return Wrap(result.Error, "failed to delete template")
	}
	if result.RowsAffected == 0 {
		return NotFoundError("template not found")
	}
	return nil
}

// Render substitutes {{name}} and every {{key}} of vars. Replacement is literal,
// so values containing braces are not expanded again.
func Render(content, name string, vars map[string]string) string {
	if !strings.Contains(content, "{{") {
		return content
	}
	return placeholderPattern.ReplaceAllStringFunc(content, func(token string) string {
		key := placeholderPattern.FindStringSubmatch(token)[1]
		if key == "name" {
			return name
		}
		if value, ok := vars[key]; ok {
			return value
		}
		return token
	})
}

// ExtractVariables lists the placeholder names of content in first-seen order
func ExtractVariables(content string) []string {
	seen := make(map[string]bool)
	names := []string{}
	for _, match := range placeholderPattern.FindAllStringSubmatch(content, -1) {
		if !seen[match[1]] {
			seen[match[1]] = true
			names = append(names, match[1])
		}
	}
	return names
}

// stringifyVars converts decoded JSON values to their text form
func stringifyVars(in map[string]interface{}) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch value := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = value
		default:
			out[k] = fmt.Sprint(value)
		}
	}
	return out
}
