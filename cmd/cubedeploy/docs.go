package main

// General API documentation for swaggo. Run `swag init -g cmd/cubedeploy/docs.go -o docs` to regenerate.
//
// @title           cubedeploy API
// @version         1.0
// @description     Stores semantic-layer model files in a ConfigMap manifest and rolls them out to the cube workload.
//
// @contact.name   cubedeploy maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
