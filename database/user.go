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
	"fmt"

	"github.com/lib/pq"

	"github.com/kolofinance/kolo/internal/apierror"
	"github.com/kolofinance/kolo/model"
)

// CreateUser inserts a new user record.
func (d Datasource) CreateUser(ctx context.Context, usr *model.User) (*model.User, error) {
	if usr.UserID == "" {
		usr.UserID = model.GenerateUUIDWithSuffix("usr")
	}
	var dob interface{}
	if !usr.DateOfBirth.IsZero() {
		dob = usr.DateOfBirth
	}
	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO kolo.users (user_id, email, first_name, last_name, date_of_birth, stripe_customer_id, paystack_customer_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, usr.UserID, usr.Email, usr.FirstName, usr.LastName, dob, usr.StripeCustomerID, usr.PaystackCustomerCode).
		Scan(&usr.ID, &usr.CreatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return nil, apierror.NewAPIError(apierror.ErrConflict, "User with this email already exists", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create user", err)
	}
	return usr, nil
}

// GetUserByID retrieves a user by their external id.
func (d Datasource) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	usr := &model.User{}
	var dob sql.NullTime
	var stripeID, paystackCode sql.NullString
	err := d.Conn.QueryRowContext(ctx, `
		SELECT id, user_id, email, first_name, last_name, date_of_birth, stripe_customer_id, paystack_customer_code, created_at
		FROM kolo.users
		WHERE user_id = $1
	`, id).Scan(&usr.ID, &usr.UserID, &usr.Email, &usr.FirstName, &usr.LastName, &dob, &stripeID, &paystackCode, &usr.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("User with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve user", err)
	}
	if dob.Valid {
		usr.DateOfBirth = dob.Time
	}
	usr.StripeCustomerID = stripeID.String
	usr.PaystackCustomerCode = paystackCode.String
	return usr, nil
}
