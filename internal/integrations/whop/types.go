package whop

import "fmt"

// Membership is a purchase record on the commerce platform.
type Membership struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	ProductID string         `json:"product_id"`
	PlanID    string         `json:"plan_id,omitempty"`
	Status    string         `json:"status"`
	Valid     bool           `json:"valid"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Product is a sellable item owned by a company.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	CompanyID   string `json:"company_id"`
	Visibility  string `json:"visibility,omitempty"`
	Description string `json:"description,omitempty"`
}

// Experience is an app surface attached to a product.
type Experience struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CompanyID string `json:"company_id"`
	ProductID string `json:"product_id,omitempty"`
}

// Company is a seller account. The owner may arrive as a bare ID or as a
// nested user object depending on the API version.
type Company struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	OwnerID string `json:"owner_id,omitempty"`
	Owner   *User  `json:"owner,omitempty"`
}

// User is a platform user reference.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// ownerUserID resolves the owner regardless of response shape.
func (c *Company) ownerUserID() string {
	if c.OwnerID != "" {
		return c.OwnerID
	}
	if c.Owner != nil {
		return c.Owner.ID
	}
	return ""
}

// AuthorizedUser is a team member of a company.
type AuthorizedUser struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type listResponse[T any] struct {
	Data []T `json:"data"`
}

// APIError is an error payload returned by the platform API.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("whop: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("whop: %s", e.Message)
}
