package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           rembgd API
// @version         1.0
// @description     HTTP API for image background removal.
//
// @contact.name   rembgd maintainers
// @contact.url    https://github.com/your-org/rembgd
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
