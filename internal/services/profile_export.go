package services

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/identity-service/internal/models"
	"github.com/SAP-F-2025/identity-service/internal/repositories"
)

const exportSheetName = "Profiles"

var exportHeaders = []interface{}{"ID", "Email", "Full Name", "Avatar URL", "Role", "Created At", "Updated At"}

// ExportProfiles writes every profile matching req to an xlsx workbook.
// Paging fields on req are ignored.
func (s *authService) ExportProfiles(ctx context.Context, req *ProfileListRequest) ([]byte, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	session, caller, err := s.requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		return nil, NewPermissionError(session.User.ID, "", "profiles", "export", "admin role required")
	}

	profiles, err := s.collectProfiles(repositories.WithAccessToken(ctx, session.AccessToken), req)
	if err != nil {
		return nil, err
	}

	data, err := buildProfileWorkbook(profiles)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Profiles exported", "admin_id", session.User.ID, "count", len(profiles))
	return data, nil
}

func (s *authService) collectProfiles(ctx context.Context, req *ProfileListRequest) ([]*models.Profile, error) {
	var all []*models.Profile
	for offset := 0; ; offset += maxPageSize {
		page, total, err := s.repo.Profile().List(ctx, repositories.ProfileFilters{
			Query:  req.Query,
			Role:   req.Role,
			Limit:  maxPageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list profiles: %w", err)
		}
		all = append(all, page...)
		if len(page) < maxPageSize || int64(len(all)) >= total {
			return all, nil
		}
	}
}

func buildProfileWorkbook(profiles []*models.Profile) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	header := exportHeaders
	if err := f.SetSheetRow(exportSheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, profile := range profiles {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{
			profile.ID,
			profile.Email,
			derefString(profile.FullName),
			derefString(profile.AvatarURL),
			string(profile.Role),
			profile.CreatedAt.UTC().Format(time.RFC3339),
			profile.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := f.SetSheetRow(exportSheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
