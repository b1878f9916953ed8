package api

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"railmon/internal/complaint"
	apperrors "railmon/internal/errors"
)

type listResponse struct {
	Success         bool             `json:"success"`
	Message         string           `json:"message"`
	TotalComplaints int              `json:"totalComplaints"`
	Complaints      []complaint.Wire `json:"complaints"`
}

type singleResponse struct {
	Message   string         `json:"message"`
	Complaint complaint.Wire `json:"complaint"`
}

// MyComplaints lists the signed-in user's complaints, newest first.
func (c *Client) MyComplaints(ctx context.Context) ([]complaint.Complaint, error) {
	return c.list(ctx, "my_complaints", "/complaints/get-complaints")
}

// AllComplaints lists every complaint (admin only). The backend answers 404
// when there are none; that is returned as an empty list.
func (c *Client) AllComplaints(ctx context.Context) ([]complaint.Complaint, error) {
	complaints, err := c.list(ctx, "all_complaints", "/complaints/get-all-complaints")
	if apperrors.StatusCode(err) == http.StatusNotFound {
		return []complaint.Complaint{}, nil
	}
	return complaints, err
}

func (c *Client) list(ctx context.Context, op, path string) ([]complaint.Complaint, error) {
	var resp listResponse
	err := c.call(ctx, request{op: op, method: http.MethodGet, path: path, authed: true}, &resp)
	if err != nil {
		return nil, err
	}

	complaints, skipped := complaint.SanitizeAll(resp.Complaints)
	if skipped > 0 {
		zap.S().Warnf("⚠️  %s: skipped %d malformed complaint(s) of %d", op, skipped, len(resp.Complaints))
	}
	return complaints, nil
}

// CreateComplaint validates and files a new complaint.
func (c *Client) CreateComplaint(ctx context.Context, s complaint.Submission) (complaint.Complaint, error) {
	s = s.Normalize()
	if err := s.Validate(); err != nil {
		return complaint.Complaint{}, err
	}

	var resp singleResponse
	err := c.call(ctx, request{
		op:     "create_complaint",
		method: http.MethodPost,
		path:   "/complaints/",
		body:   s,
		authed: true,
	}, &resp)
	if err != nil {
		return complaint.Complaint{}, err
	}
	return complaint.Sanitize(resp.Complaint)
}

// UpdateComplaint sends an admin update and returns the complaint as the
// backend now has it.
//
// Only the shape of u is checked here; transition rules need the current
// status and are the caller's job.
//
// Debug mode:
//   - Logs the update and returns a complaint carrying only the new fields
func (c *Client) UpdateComplaint(ctx context.Context, id string, u complaint.Update) (complaint.Complaint, error) {
	if err := u.ValidateFields(); err != nil {
		return complaint.Complaint{}, err
	}

	if c.debug {
		zap.S().Infof("🐛 DEBUG MODE: would update complaint %s: status=%q resolution=%q assignedTo=%q",
			id, u.Status, u.Resolution, u.AssignedTo)
		return complaint.ApplyUpdate(complaint.Complaint{ID: id, Status: u.Status}, u), nil
	}

	var resp singleResponse
	err := c.call(ctx, request{
		op:     "update_complaint",
		method: http.MethodPut,
		path:   "/complaints/update/" + url.PathEscape(id),
		body:   u,
		authed: true,
	}, &resp)
	if err != nil {
		return complaint.Complaint{}, err
	}

	zap.S().Infof("✅ Complaint %s updated", id)
	return complaint.Sanitize(resp.Complaint)
}
