package common

// Cookie names shared by the REST layer and its tests.
const (
	AccessTokenCookieName  = "accessToken"
	RefreshTokenCookieName = "refreshToken"
)
