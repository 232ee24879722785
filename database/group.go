/*
Copyright 2025 Kolo Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"

	"github.com/kolofinance/kolo/internal/apierror"
	"github.com/kolofinance/kolo/model"
)

// CreateGroup inserts a new contribution group.
func (d Datasource) CreateGroup(ctx context.Context, grp *model.Group) (*model.Group, error) {
	if grp.GroupID == "" {
		grp.GroupID = model.GenerateUUIDWithSuffix("grp")
	}
	metaDataJSON, err := json.Marshal(grp.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}
	var targetDate interface{}
	if !grp.TargetDate.IsZero() {
		targetDate = grp.TargetDate
	}
	err = d.Conn.QueryRowContext(ctx, `
		INSERT INTO kolo.groups (group_id, name, kind, currency, amount, admin_id, billing_interval, deadline_day, deadline_month, target_date, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`, grp.GroupID, grp.Name, grp.Kind, grp.Currency, grp.Amount, grp.AdminID, grp.Interval,
		grp.DeadlineDay, grp.DeadlineMonth, targetDate, metaDataJSON).
		Scan(&grp.ID, &grp.CreatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return nil, apierror.NewAPIError(apierror.ErrConflict, "Group with this ID already exists", err)
			case "foreign_key_violation":
				return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Invalid admin ID", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create group", err)
	}
	return grp, nil
}

// GetGroupByID retrieves a group by its external id.
func (d Datasource) GetGroupByID(ctx context.Context, id string) (*model.Group, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, group_id, name, kind, currency, amount, admin_id, COALESCE(billing_interval, ''), COALESCE(deadline_day, 0), COALESCE(deadline_month, 0), target_date, created_at, meta_data
		FROM kolo.groups
		WHERE group_id = $1
	`, id)
	grp, err := scanGroup(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Group with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve group", err)
	}
	return grp, nil
}

// GetGroupsByKind retrieves every group of one kind. The scheduler walks
// these on its daily tick.
func (d Datasource) GetGroupsByKind(ctx context.Context, kind model.GroupKind) ([]*model.Group, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, group_id, name, kind, currency, amount, admin_id, COALESCE(billing_interval, ''), COALESCE(deadline_day, 0), COALESCE(deadline_month, 0), target_date, created_at, meta_data
		FROM kolo.groups
		WHERE kind = $1
		ORDER BY id
	`, kind)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve groups", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var groups []*model.Group
	for rows.Next() {
		grp, err := scanGroup(rows.Scan)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan group data", err)
		}
		groups = append(groups, grp)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating groups", err)
	}
	return groups, nil
}

func scanGroup(scan func(dest ...interface{}) error) (*model.Group, error) {
	grp := &model.Group{}
	var targetDate sql.NullTime
	metaDataJSON := []byte{}
	err := scan(&grp.ID, &grp.GroupID, &grp.Name, &grp.Kind, &grp.Currency, &grp.Amount,
		&grp.AdminID, &grp.Interval, &grp.DeadlineDay, &grp.DeadlineMonth, &targetDate,
		&grp.CreatedAt, &metaDataJSON)
	if err != nil {
		return nil, err
	}
	if targetDate.Valid {
		grp.TargetDate = targetDate.Time
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &grp.MetaData); err != nil {
			return nil, err
		}
	}
	return grp, nil
}

// AddGroupMember records a user joining a group.
func (d Datasource) AddGroupMember(ctx context.Context, groupID, userID string) error {
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO kolo.group_members (group_id, user_id)
		VALUES ($1, $2)
	`, groupID, userID)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return apierror.NewAPIError(apierror.ErrConflict, "User is already a member of this group", err)
			case "foreign_key_violation":
				return apierror.NewAPIError(apierror.ErrBadRequest, "Invalid group or user ID", err)
			}
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to add group member", err)
	}
	if d.Cache != nil {
		if err := d.Cache.Delete(ctx, fmt.Sprintf("group:members:%s", groupID)); err != nil {
			log.Printf("Failed to invalidate member cache: %v", err)
		}
	}
	return nil
}

// GetGroupMembers retrieves a group's membership in join order. Memberships
// change rarely relative to how often the sweeps read them, so results are
// cached briefly when a cache is attached.
func (d Datasource) GetGroupMembers(ctx context.Context, groupID string) ([]*model.Member, error) {
	cacheKey := fmt.Sprintf("group:members:%s", groupID)
	if d.Cache != nil {
		var members []*model.Member
		if err := d.Cache.Get(ctx, cacheKey, &members); err == nil && len(members) > 0 {
			return members, nil
		}
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT group_id, user_id, joined_at
		FROM kolo.group_members
		WHERE group_id = $1
		ORDER BY id
	`, groupID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve group members", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var members []*model.Member
	for rows.Next() {
		m := &model.Member{}
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.JoinedAt); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan member data", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating group members", err)
	}

	if d.Cache != nil && len(members) > 0 {
		if err := d.Cache.Set(ctx, cacheKey, members, 5*time.Minute); err != nil {
			log.Printf("Failed to cache group members: %v", err)
		}
	}
	return members, nil
}
