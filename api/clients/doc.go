/*
Package clients provides a Go client for the signing service HTTP API.

CustodyClient keeps its session in a cookie jar, so each client value acts as
one logged-in user:

	client, err := clients.NewCustodyClient("http://127.0.0.1:8080")
	if err != nil {
		return err
	}
	if _, err := client.Login(ctx, "user1", "123456"); err != nil {
		return err
	}
	if _, err := client.GenerateKey(ctx); err != nil {
		return err
	}
	signature, err := client.SignAndWait(ctx, "hello")

Failed requests return a *StatusError carrying the HTTP status and the
server's error message.
*/
package clients
