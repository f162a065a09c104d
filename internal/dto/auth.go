package dto

type RegisterRequestDTO struct {
	Login    string `json:"login" validate:"required,min=3,max=50" example:"alice"`
	Password string `json:"password" validate:"required,min=8" example:"correct-horse"`
}

type RegisterResponseDTO struct {
	Message string `json:"message"`
}

type LoginRequestDTO struct {
	Login    string `json:"login" validate:"required,max=50" example:"alice"`
	Password string `json:"password" validate:"required" example:"correct-horse"`
}

type LoginResponseDTO struct {
	Message string `json:"message"`
}
