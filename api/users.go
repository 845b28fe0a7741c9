package api

import (
	"context"
	"io"
	"net/http"

	"vulnlib/library"
)

// UsersClient wraps /users and the per-user loans, fines and wishlist.
type UsersClient struct {
	c *Client
}

// Get returns a user profile.
func (u *UsersClient) Get(ctx context.Context, id string) (*library.User, error) {
	var user library.User
	if err := u.c.Do(ctx, "/users"+pathID(id), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Update sends the given profile fields as is.
func (u *UsersClient) Update(ctx context.Context, id string, fields map[string]any) (*library.Result, error) {
	var res library.Result
	if err := u.c.Do(ctx, "/users"+pathID(id), &Request{Method: http.MethodPut, Body: fields}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Loans lists the loans of a user.
func (u *UsersClient) Loans(ctx context.Context, userID string) ([]library.Loan, error) {
	var env struct {
		Loans []library.Loan `json:"loans"`
	}
	if err := u.c.Do(ctx, "/users"+pathID(userID)+"/loans", nil, &env); err != nil {
		return nil, err
	}
	return env.Loans, nil
}

// Fines lists the fines of a user, paid or not.
func (u *UsersClient) Fines(ctx context.Context, userID string) ([]library.Fine, error) {
	var env struct {
		Fines []library.Fine `json:"fines"`
	}
	if err := u.c.Do(ctx, "/users"+pathID(userID)+"/fines", nil, &env); err != nil {
		return nil, err
	}
	return env.Fines, nil
}

// PayFine records a payment against one fine.
func (u *UsersClient) PayFine(ctx context.Context, userID string, p library.FinePayment) (*library.Result, error) {
	var res library.Result
	req := &Request{Method: http.MethodPost, Body: p}
	if err := u.c.Do(ctx, "/users"+pathID(userID)+"/fines/pay", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Wishlist lists the books a user wants.
func (u *UsersClient) Wishlist(ctx context.Context, userID string) ([]library.WishlistItem, error) {
	var env struct {
		Wishlist []library.WishlistItem `json:"wishlist"`
	}
	if err := u.c.Do(ctx, "/users"+pathID(userID)+"/wishlist", nil, &env); err != nil {
		return nil, err
	}
	return env.Wishlist, nil
}

// AddToWishlist puts a book on a user's wishlist.
func (u *UsersClient) AddToWishlist(ctx context.Context, userID, bookID string) (*library.Result, error) {
	var res library.Result
	req := &Request{Method: http.MethodPost, Body: map[string]string{"book_id": bookID}}
	if err := u.c.Do(ctx, "/users"+pathID(userID)+"/wishlist", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// RemoveFromWishlist drops a wishlist entry by its own id, not the book's.
func (u *UsersClient) RemoveFromWishlist(ctx context.Context, userID, itemID string) (*library.Result, error) {
	var res library.Result
	endpoint := "/users" + pathID(userID) + "/wishlist" + pathID(itemID)
	if err := u.c.Do(ctx, endpoint, &Request{Method: http.MethodDelete}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// UploadAvatar sets the avatar of the logged-in user.
func (u *UsersClient) UploadAvatar(ctx context.Context, filename string, content io.Reader) (*library.Result, error) {
	var res library.Result
	up := &Upload{Field: "avatar", Filename: filename, Content: content}
	if err := u.c.Upload(ctx, "/users/avatar/upload", up, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
