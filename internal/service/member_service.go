package service

import (
	"context"

	"go.uber.org/zap"

	"organizerpro/backend/internal/dto"
	"organizerpro/backend/internal/model"
	"organizerpro/backend/internal/repository"
	pkgerrors "organizerpro/backend/pkg/errors"
)

// MemberService 成员名册（只读）
type MemberService interface {
	List(ctx context.Context, req *dto.MemberListRequest) ([]dto.MemberResponse, error)
}

type memberService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewMemberService 创建 MemberService 实例
func NewMemberService(repo *repository.Repository, logger *zap.Logger) MemberService {
	return &memberService{repo: repo, logger: logger}
}

func (s *memberService) List(ctx context.Context, req *dto.MemberListRequest) ([]dto.MemberResponse, error) {
	members, err := s.repo.Member.List(ctx, repository.MemberFilter{
		IncludeInactive: req.IncludeInactive,
		Role:            req.Role,
		MemberType:      req.MemberType,
		ProjectID:       req.ProjectID,
	})
	if err != nil {
		s.logger.Error("列出成员失败", zap.Error(err))
		return nil, pkgerrors.Persistence("列出成员", err)
	}

	result := make([]dto.MemberResponse, 0, len(members))
	for i := range members {
		result = append(result, toMemberResponse(&members[i]))
	}
	return result, nil
}

func toMemberResponse(m *model.Member) dto.MemberResponse {
	return dto.MemberResponse{
		ID:         m.MemberID,
		Name:       m.Name,
		Role:       m.Role,
		MemberType: m.MemberType,
		Status:     m.Status,
		ProjectID:  m.ProjectID,
	}
}
