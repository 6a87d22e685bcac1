package service

import (
	"context"
	"strings"

	"taskflow/internal/domain/models"
)

type ListService struct {
	lists ListRepository
}

func NewListService(lists ListRepository) *ListService {
	return &ListService{lists: lists}
}

func (s *ListService) Create(ctx context.Context, userID string, req models.ListRequest) (*models.List, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	list := &models.List{UserID: userID, Title: req.Title}
	if err := s.lists.CreateList(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// List returns the owner's lists, newest first.
func (s *ListService) List(ctx context.Context, userID string) ([]models.List, error) {
	return s.lists.GetLists(ctx, userID)
}

func (s *ListService) Rename(ctx context.Context, userID, id string, req models.ListRequest) (*models.List, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	return s.lists.RenameList(ctx, userID, id, req.Title)
}

func (s *ListService) Delete(ctx context.Context, userID, id string) error {
	return s.lists.DeleteList(ctx, userID, id)
}
