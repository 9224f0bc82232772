package dto

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateRequest carries a partial update. Absent fields stay nil.
type UpdateRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

type ProfilePictureResponse struct {
	ProfilePicture    string `json:"profilePicture"`
	ProfilePictureURL string `json:"profilePictureUrl"`
}
