package main

func MainFunc() {}

func main() {}
