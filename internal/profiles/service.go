package profiles

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/pdf-splitter/constants"
	"github.com/joseph-ayodele/pdf-splitter/internal/common"
	"github.com/joseph-ayodele/pdf-splitter/internal/entity"
	"github.com/joseph-ayodele/pdf-splitter/internal/pathtemplate"
	"github.com/joseph-ayodele/pdf-splitter/internal/repository"
)

const maxProfileNameLength = 100

// Service handles profile business logic on top of the store.
// Name uniqueness is enforced here; the store itself stays permissive.
type Service struct {
	store  repository.ProfileStore
	logger *slog.Logger
}

// NewService creates a new profile service.
func NewService(store repository.ProfileStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// CreateProfileRequest represents profile creation parameters.
type CreateProfileRequest struct {
	Name          string
	Description   string
	OutputPattern string
	InputFolder   string
	OutputFolder  string
	Fields        []entity.IndexField
}

// CreateProfile validates and stores a new profile.
func (s *Service) CreateProfile(req CreateProfileRequest) (entity.IndexProfile, error) {
	pattern := strings.TrimSpace(req.OutputPattern)
	if pattern == "" {
		pattern = constants.DefaultOutputPattern
	}
	p := entity.IndexProfile{
		Name:          strings.TrimSpace(req.Name),
		Description:   strings.TrimSpace(req.Description),
		OutputPattern: pattern,
		InputFolder:   strings.TrimSpace(req.InputFolder),
		OutputFolder:  strings.TrimSpace(req.OutputFolder),
	}
	for _, f := range req.Fields {
		p.AddField(normalizeField(f))
	}
	if err := validateProfile(p); err != nil {
		return entity.IndexProfile{}, err
	}
	if _, exists := s.store.Get(p.Name); exists {
		return entity.IndexProfile{}, common.ConflictErrorf("profile %q already exists", p.Name)
	}
	if err := s.store.Add(p); err != nil {
		s.logger.Error("failed to persist profile", "name", p.Name, "error", err)
		return entity.IndexProfile{}, common.NewAppError(common.CodeStorage, "save profile", err)
	}
	s.warnUnknownKeys(p)
	s.logger.Info("profile created successfully", "name", p.Name, "fields", len(p.Fields))
	return p.Clone(), nil
}

// ListProfiles returns all profiles in store order.
func (s *Service) ListProfiles() []entity.IndexProfile {
	plist := s.store.List()
	s.logger.Debug("profiles listed", "count", len(plist))
	return plist
}

// GetProfile resolves a (possibly stale) profile name.
func (s *Service) GetProfile(name string) (entity.IndexProfile, bool) {
	return s.store.Get(name)
}

// DeleteProfile removes every profile carrying name.
func (s *Service) DeleteProfile(name string) error {
	removed, err := s.store.Remove(name)
	if err != nil {
		s.logger.Error("failed to delete profile", "name", name, "error", err)
		return common.NewAppError(common.CodeStorage, "delete profile", err)
	}
	if !removed {
		return common.NotFoundErrorf("profile %q not found", name)
	}
	s.logger.Info("profile deleted", "name", name)
	return nil
}

// DuplicateProfile stores a copy of name as "<name> (Copy)", numbering further
// copies "<name> (Copy 2)", "<name> (Copy 3)" and so on.
func (s *Service) DuplicateProfile(name string) (entity.IndexProfile, error) {
	src, ok := s.store.Get(name)
	if !ok {
		return entity.IndexProfile{}, common.NotFoundErrorf("profile %q not found", name)
	}
	dup := src.Duplicate()
	for n := 2; ; n++ {
		if _, taken := s.store.Get(dup.Name); !taken {
			break
		}
		dup.Name = fmt.Sprintf("%s (Copy %d)", name, n)
	}
	if err := s.store.Add(dup); err != nil {
		s.logger.Error("failed to persist duplicated profile", "name", dup.Name, "error", err)
		return entity.IndexProfile{}, common.NewAppError(common.CodeStorage, "save profile", err)
	}
	s.logger.Info("profile duplicated", "source", name, "name", dup.Name)
	return dup.Clone(), nil
}

// SetFieldValue updates one field value and persists immediately.
func (s *Service) SetFieldValue(profileName, fieldName, value string) error {
	p, ok := s.store.Get(profileName)
	if !ok {
		return common.NotFoundErrorf("profile %q not found", profileName)
	}
	f, ok := p.Field(fieldName)
	if !ok {
		return common.NotFoundErrorf("field %q not found in profile %q", fieldName, profileName)
	}
	if f.FieldType == constants.FieldDropdown && value != "" && !contains(f.Options, value) {
		return common.InvalidArgumentErrorf("%s must be one of %s", fieldName, strings.Join(f.Options, ", "))
	}
	f.Value = value
	if _, err := s.store.Replace(profileName, p); err != nil {
		s.logger.Error("failed to persist field value", "profile", profileName, "field", fieldName, "error", err)
		return common.NewAppError(common.CodeStorage, "save profile", err)
	}
	s.logger.Debug("field value saved", "profile", profileName, "field", fieldName)
	return nil
}

// ValidateForApply reports the required fields of name that lack a value.
// A nil error means the profile can be assigned to pages.
func (s *Service) ValidateForApply(name string) error {
	p, ok := s.store.Get(name)
	if !ok {
		return common.NotFoundErrorf("profile %q not found", name)
	}
	if msgs := p.ValidateAll(); len(msgs) > 0 {
		return common.NewAppError(common.CodeValidation,
			"Please fill in required fields:\n"+strings.Join(msgs, "\n"), common.ErrValidation)
	}
	return nil
}

// BeginEdit returns a detached copy of name. Changes become visible only on Commit.
func (s *Service) BeginEdit(name string) (*Edit, error) {
	p, ok := s.store.Get(name)
	if !ok {
		return nil, common.NotFoundErrorf("profile %q not found", name)
	}
	return &Edit{svc: s, original: name, Profile: p}, nil
}

// Edit is an in-progress change to one profile.
type Edit struct {
	svc      *Service
	original string
	done     bool

	// Profile is the working copy; callers mutate it freely.
	Profile entity.IndexProfile
}

// Original is the name the profile had when the edit began.
func (e *Edit) Original() string { return e.original }

// Commit validates the working copy and replaces the stored profile by its
// original name. A rename must not collide with another profile.
func (e *Edit) Commit() error {
	if e.done {
		return common.InvalidArgumentErrorf("edit of %q already finished", e.original)
	}
	p := e.Profile.Clone()
	p.Name = strings.TrimSpace(p.Name)
	if strings.TrimSpace(p.OutputPattern) == "" {
		p.OutputPattern = constants.DefaultOutputPattern
	}
	for i := range p.Fields {
		p.Fields[i] = normalizeField(p.Fields[i])
	}
	if err := validateProfile(p); err != nil {
		return err
	}
	if p.Name != e.original {
		if _, taken := e.svc.store.Get(p.Name); taken {
			return common.ConflictErrorf("profile %q already exists", p.Name)
		}
	}
	replaced, err := e.svc.store.Replace(e.original, p)
	if err != nil {
		e.svc.logger.Error("failed to persist profile edit", "name", e.original, "error", err)
		return common.NewAppError(common.CodeStorage, "save profile", err)
	}
	if !replaced {
		return common.NotFoundErrorf("profile %q was deleted during the edit", e.original)
	}
	e.done = true
	e.svc.warnUnknownKeys(p)
	e.svc.logger.Info("profile updated", "name", p.Name, "previous_name", e.original)
	return nil
}

// Discard drops the working copy.
func (e *Edit) Discard() {
	e.done = true
}

func normalizeField(f entity.IndexField) entity.IndexField {
	f.Name = strings.TrimSpace(f.Name)
	if f.FieldType == "" {
		f.FieldType = constants.FieldText
	}
	if f.Options == nil {
		f.Options = []string{}
	}
	return f
}

func validateProfile(p entity.IndexProfile) error {
	v := common.NewValidator()
	v.Field("name", p.Name, common.Required, common.MaxLength(maxProfileNameLength))
	v.Field("output_pattern", p.OutputPattern, common.Required)

	seen := make(map[string]struct{}, len(p.Fields))
	for i, f := range p.Fields {
		label := fmt.Sprintf("fields[%d].name", i)
		v.Field(label, f.Name, common.Required)
		if f.Name != "" {
			_, dup := seen[f.Name]
			v.Check(!dup, label, f.Name, "must be unique within the profile")
			seen[f.Name] = struct{}{}
		}
		v.Field(fmt.Sprintf("fields[%d].field_type", i), string(f.FieldType),
			common.OneOf(constants.FieldTypesAsStrings()...))
		if f.FieldType == constants.FieldDropdown {
			v.Field(fmt.Sprintf("fields[%d].options", i), f.Options, common.Required)
		}
	}
	return common.ValidateAndReturnError(v)
}

// warnUnknownKeys logs pattern tokens no field provides; such patterns resolve to
// the folder_name/file_name fallback.
func (s *Service) warnUnknownKeys(p entity.IndexProfile) {
	if missing := pathtemplate.Missing(p.OutputPattern, p.FieldValues()); len(missing) > 0 {
		s.logger.Warn("output pattern references keys no field provides",
			"profile", p.Name, "pattern", p.OutputPattern, "keys", missing)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
