/*
Package authsdk provides the wire types and a Go client for the accounts
service.

# Overview

The server handlers encode and decode the request and response types in
this package, and write errors with APIError.WriteError, so the client and
server cannot drift apart.

	client := authsdk.NewSDKClient("https://accounts.example.com")

	step, err := client.SignupInitiate(ctx, "Ada Lovelace", "ada@example.com")
	// step == authsdk.StepEmailOTP

	step, err = client.VerifyEmail(ctx, "ada@example.com", code)
	// step == authsdk.StepMobilePassword

# Sessions

LoginVerify and AdminVerifyOTP return a SessionResponse and the server also
sets an HttpOnly cookie. NewSDKClient installs a cookie jar, so later calls
with an empty token are authenticated by that cookie. Pass the token
explicitly to use a bearer header instead:

	sess, err := client.LoginVerify(ctx, email, code)
	me, err := client.Me(ctx, sess.Token)

# Error Handling

Every non-2xx response is returned as *APIError. APIError implements Is by
code, so callers can match with errors.Is:

	_, err := client.VerifyEmail(ctx, email, "000000")
	if errors.Is(err, authsdk.ErrOTPMismatch) {
		// wrong code
	}

	var apiErr *authsdk.APIError
	if errors.As(err, &apiErr) && apiErr.Code == authsdk.ErrorCodeInvalidStep {
		fmt.Println("go to", apiErr.NextStep)
	}

Cooldown errors carry RetryAfter in seconds.
*/
package authsdk
