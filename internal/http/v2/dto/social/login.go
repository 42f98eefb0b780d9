package social

// LoginRequest body de POST /social/{provider}/ (JSON o form).
type LoginRequest struct {
	AccessToken string `json:"access_token"`
}

// LoginResponse respuesta exitosa. Nunca incluye el token del provider.
type LoginResponse struct {
	Token string `json:"token"`
}

// ProvidersResponse respuesta de GET /social/providers.
type ProvidersResponse struct {
	Providers []string `json:"providers"`
}
