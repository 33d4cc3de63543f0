package client

func WithClient(apiConnectionDetails *ApiConnectionDetails, action func(*Client) error) error {
	c := CreateApiConnection(apiConnectionDetails)
	defer c.http.HTTPClient.CloseIdleConnections()
	return action(c)
}
