package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/villaclean/bookingcore/internal/persistence"
)

type assigneeRow struct {
	ID     string         `db:"id"`
	Name   string         `db:"name"`
	Phone  string         `db:"phone"`
	TeamID sql.NullString `db:"team_id"`
}

func (r assigneeRow) toModel() persistence.Assignee {
	return persistence.Assignee{ID: r.ID, Name: r.Name, Phone: r.Phone, TeamID: stringPtr(r.TeamID)}
}

// CreateAssignee registers a cleaner. Phone must already be normalized.
func (s *Store) CreateAssignee(ctx context.Context, assignee persistence.Assignee) error {
	query := s.db.Rebind(`INSERT INTO assignees (id, name, phone, team_id) VALUES (?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, assignee.ID, assignee.Name, assignee.Phone, nullString(assignee.TeamID))
	return mapError(err)
}

// GetAssignee loads a cleaner by id.
func (s *Store) GetAssignee(ctx context.Context, id string) (persistence.Assignee, error) {
	var row assigneeRow
	query := s.db.Rebind(`SELECT id, name, phone, team_id FROM assignees WHERE id = ?`)
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		return persistence.Assignee{}, mapError(err)
	}
	return row.toModel(), nil
}

// GetAssigneeByPhone resolves a cleaner by exact normalized phone.
func (s *Store) GetAssigneeByPhone(ctx context.Context, phone string) (persistence.Assignee, error) {
	var row assigneeRow
	query := s.db.Rebind(`SELECT id, name, phone, team_id FROM assignees WHERE phone = ?`)
	if err := s.db.GetContext(ctx, &row, query, phone); err != nil {
		return persistence.Assignee{}, mapError(err)
	}
	return row.toModel(), nil
}

// ListTeamMembers returns every cleaner on a team ordered by name.
func (s *Store) ListTeamMembers(ctx context.Context, teamID string) ([]persistence.Assignee, error) {
	var rows []assigneeRow
	query := s.db.Rebind(`SELECT id, name, phone, team_id FROM assignees WHERE team_id = ? ORDER BY name ASC, id ASC`)
	if err := s.db.SelectContext(ctx, &rows, query, teamID); err != nil {
		return nil, mapError(err)
	}
	members := make([]persistence.Assignee, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.toModel())
	}
	return members, nil
}

// CreateRequester registers a villa owner.
func (s *Store) CreateRequester(ctx context.Context, requester persistence.Requester) error {
	query := s.db.Rebind(`INSERT INTO requesters (id, name, phone) VALUES (?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, requester.ID, requester.Name, requester.Phone)
	return mapError(err)
}

// GetRequester loads a villa owner by id.
func (s *Store) GetRequester(ctx context.Context, id string) (persistence.Requester, error) {
	var requester persistence.Requester
	query := s.db.Rebind(`SELECT id, name, phone FROM requesters WHERE id = ?`)
	row := s.db.QueryRowxContext(ctx, query, id)
	if err := row.Scan(&requester.ID, &requester.Name, &requester.Phone); err != nil {
		return persistence.Requester{}, mapError(err)
	}
	return requester, nil
}

// CreateProperty registers a villa.
func (s *Store) CreateProperty(ctx context.Context, property persistence.Property) error {
	query := s.db.Rebind(`INSERT INTO properties (id, owner_id, name, access_secret) VALUES (?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, property.ID, property.OwnerID, property.Name, property.AccessSecret)
	return mapError(err)
}

// GetProperty loads a villa by id.
func (s *Store) GetProperty(ctx context.Context, id string) (persistence.Property, error) {
	var property persistence.Property
	query := s.db.Rebind(`SELECT id, owner_id, name, access_secret FROM properties WHERE id = ?`)
	row := s.db.QueryRowxContext(ctx, query, id)
	if err := row.Scan(&property.ID, &property.OwnerID, &property.Name, &property.AccessSecret); err != nil {
		return persistence.Property{}, mapError(err)
	}
	return property, nil
}

// UpdatePropertySecret replaces the sealed access secret of a villa.
func (s *Store) UpdatePropertySecret(ctx context.Context, id, sealed string) error {
	query := s.db.Rebind(`UPDATE properties SET access_secret = ? WHERE id = ?`)
	result, err := s.db.ExecContext(ctx, query, sealed, id)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
