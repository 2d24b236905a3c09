package auth

// UserContext is the resolved identity of the caller. EmployeeID is zero for
// accounts that are not linked to an employee (typically pure admins).
type UserContext struct {
	UserID     int64 `json:"userId"`
	EmployeeID int64 `json:"employeeId,omitempty"`
	IsAdmin    bool  `json:"isAdmin"`
}

func (u UserContext) HasEmployee() bool {
	return u.EmployeeID != 0
}

func (c Claims) User() UserContext {
	return UserContext{UserID: c.UserID, EmployeeID: c.EmployeeID, IsAdmin: c.IsAdmin}
}
