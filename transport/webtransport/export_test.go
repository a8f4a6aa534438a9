package webtransport

var WrapReadError = wrapReadError
